package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the smart-lock daemon and its tools.
type Config struct {
	// Detection holds the thresholds of the presence state machine.
	// It is the only block that is re-applied on hot reload.
	Detection Detection `yaml:"detection" validate:"required"`
	// Sensor configures the ultrasonic distance sensor.
	Sensor Sensor `yaml:"sensor" validate:"required"`
	// Servo configures the lock servo.
	Servo Servo `yaml:"servo" validate:"required"`
	// Camera configures still capture.
	Camera Camera `yaml:"camera" validate:"required"`
	// Classifier configures the on-device vision model.
	Classifier Classifier `yaml:"classifier" validate:"required"`
	// Email configures visitor notifications.
	Email Email `yaml:"email"`
	// Channel configures the MQTT command/telemetry link.
	Channel Channel `yaml:"channel" validate:"required"`
	// Store configures the local episode audit log.
	Store Store `yaml:"store"`
	// Metrics configures the Prometheus endpoint.
	Metrics Metrics `yaml:"metrics"`
	// Health configures the local gRPC health endpoint.
	Health Health `yaml:"health"`
	// UpdateFolder is the URL where update artifacts are hosted.
	UpdateFolder string `yaml:"update_folder,omitempty" validate:"omitempty,url"`
	// Timeout bounds network round trips of the command-line tools.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Detection holds the tunable thresholds of the presence state machine.
type Detection struct {
	// NearThreshold is the distance in inches at or below which a visitor is present.
	NearThreshold float64 `yaml:"near_threshold" validate:"gt=0"`
	// OccupiedThreshold is the distance in inches reported as "touched" in telemetry.
	// It is independent from NearThreshold.
	OccupiedThreshold float64 `yaml:"occupied_threshold" validate:"gt=0"`
	// DwellDuration is how long presence must persist before an episode fires.
	DwellDuration time.Duration `yaml:"dwell_duration" validate:"gt=0"`
	// ConfidenceThreshold is the minimum classifier confidence for a known label.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	// PollInterval is the period of the sensing loop.
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=10ms"`
}

// Sensor configures the HC-SR04 style ultrasonic sensor.
type Sensor struct {
	// TriggerPin is the GPIO name driving the trigger line (e.g. GPIO23).
	TriggerPin string `yaml:"trigger_pin" validate:"required"`
	// EchoPin is the GPIO name reading the echo line (e.g. GPIO24).
	EchoPin string `yaml:"echo_pin" validate:"required"`
	// Timeout bounds a single measurement.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Servo configures the lock servo.
type Servo struct {
	// Pin is the PWM capable GPIO name (e.g. GPIO18).
	Pin string `yaml:"pin" validate:"required"`
	// LockedAngle is the servo angle for the locked position.
	LockedAngle float64 `yaml:"locked_angle" validate:"gte=0,lte=180"`
	// UnlockedAngle is the servo angle for the unlocked position.
	UnlockedAngle float64 `yaml:"unlocked_angle" validate:"gte=0,lte=180"`
	// Settle is how long the pulse is held before the servo is released.
	Settle time.Duration `yaml:"settle" validate:"gte=0"`
}

// Camera configures still capture.
type Camera struct {
	// Device is the video device index.
	Device int `yaml:"device" validate:"gte=0"`
	// Warmup is how long the sensor is given to adjust exposure before a frame is kept.
	Warmup time.Duration `yaml:"warmup" validate:"gte=0"`
	// BrightnessAlpha is the contrast gain applied to the frame.
	BrightnessAlpha float64 `yaml:"brightness_alpha" validate:"gt=0"`
	// BrightnessBeta is the brightness offset applied to the frame.
	BrightnessBeta float64 `yaml:"brightness_beta"`
	// ImagePath is where the last capture is written; its base name names the attachment.
	ImagePath string `yaml:"image_path" validate:"required"`
}

// Classifier configures the vision model.
type Classifier struct {
	// ModelPath is the model file loaded through OpenCV DNN (.tflite or .onnx).
	ModelPath string `yaml:"model_path" validate:"required"`
	// LabelsPath is the "<index> <name>" labels file.
	LabelsPath string `yaml:"labels_path" validate:"required"`
	// InputSize is the square input edge expected by the model.
	InputSize int `yaml:"input_size" validate:"gt=0"`
}

// Email configures the SMTP notifier. The password is only taken from the environment.
type Email struct {
	// Host is the SMTP server; empty disables notifications.
	Host string `yaml:"host"`
	// Port is the SMTP submission port.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
	// From is the sender address.
	From string `yaml:"from" validate:"omitempty,email"`
	// To is the recipient address.
	To string `yaml:"to" validate:"required_with=Host"`
	// Username authenticates against Host; defaults to From.
	Username string `yaml:"username"`
	// Password authenticates against Host. Never persisted.
	Password string `yaml:"-"`
}

// Channel configures the MQTT link.
type Channel struct {
	// Broker is the broker URL, e.g. ssl://example.iot.eu-west-1.amazonaws.com:8883.
	Broker string `yaml:"broker" validate:"required,url"`
	// ClientID identifies this device at the broker.
	ClientID string `yaml:"client_id" validate:"required"`
	// CommandTopic carries {"command": "lock"|"unlock"}.
	CommandTopic string `yaml:"command_topic" validate:"required"`
	// TelemetryTopic carries {"sensorTouched": bool} every poll cycle.
	TelemetryTopic string `yaml:"telemetry_topic" validate:"required"`
	// StatusTopic carries the retained device heartbeat; empty disables it.
	StatusTopic string `yaml:"status_topic"`
	// StatusInterval is the heartbeat period.
	StatusInterval time.Duration `yaml:"status_interval" validate:"gt=0"`
	// CACertFile is the PEM bundle used to verify the broker.
	CACertFile string `yaml:"ca_cert_file"`
	// CertFile is the client certificate for mutual TLS.
	CertFile string `yaml:"cert_file" validate:"required_with=KeyFile"`
	// KeyFile is the client private key for mutual TLS.
	KeyFile string `yaml:"key_file" validate:"required_with=CertFile"`
	// InsecureSkipVerify disables broker certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
	// KeepAlive is the MQTT keep-alive period.
	KeepAlive time.Duration `yaml:"keep_alive" validate:"gt=0"`
	// PublishTimeout bounds the wait for a publish to leave the client.
	PublishTimeout time.Duration `yaml:"publish_timeout" validate:"gt=0"`
}

// Store configures the episode audit log.
type Store struct {
	// Path is the SQLite database file; empty disables the log.
	Path string `yaml:"path"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// ListenAddress serves /metrics; empty disables the endpoint.
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

// Health configures the gRPC health endpoint.
type Health struct {
	// ListenAddress serves grpc.health.v1; empty disables the endpoint.
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "smart-lock-settings.yaml"

	// DefaultTimeout is the default duration for network operations of the tools.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")

	// validate is shared because validator caches struct metadata.
	//nolint:gochecknoglobals // Validator instances are safe for concurrent use.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Default returns a configuration populated with the factory defaults.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from path, applies .env and environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// A .env next to the working directory is optional.
	if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return Parse(contents, os.LookupEnv)
}

// Parse decodes YAML contents, applies overrides from lookup, fills defaults
// and validates the result.
func Parse(contents []byte, lookup LookupFunc) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML. Secrets are never written.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and checks the struct constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}

//nolint:cyclop,mnd // A flat list of defaults is easier to audit than a table.
func applyDefaults(cfg *Config) {
	d := &cfg.Detection
	if d.NearThreshold == 0 {
		d.NearThreshold = 15
	}

	if d.OccupiedThreshold == 0 {
		d.OccupiedThreshold = 10
	}

	if d.DwellDuration == 0 {
		d.DwellDuration = 5 * time.Second
	}

	if d.ConfidenceThreshold == 0 {
		d.ConfidenceThreshold = 0.9
	}

	if d.PollInterval == 0 {
		d.PollInterval = 500 * time.Millisecond
	}

	setDefault(&cfg.Sensor.TriggerPin, "GPIO23")
	setDefault(&cfg.Sensor.EchoPin, "GPIO24")

	if cfg.Sensor.Timeout == 0 {
		cfg.Sensor.Timeout = 100 * time.Millisecond
	}

	setDefault(&cfg.Servo.Pin, "GPIO18")

	if cfg.Servo.LockedAngle == 0 && cfg.Servo.UnlockedAngle == 0 {
		cfg.Servo.UnlockedAngle = 180
	}

	if cfg.Servo.Settle == 0 {
		cfg.Servo.Settle = 500 * time.Millisecond
	}

	if cfg.Camera.Warmup == 0 {
		cfg.Camera.Warmup = 2 * time.Second
	}

	if cfg.Camera.BrightnessAlpha == 0 {
		cfg.Camera.BrightnessAlpha = 1.1
		cfg.Camera.BrightnessBeta = 20
	}

	setDefault(&cfg.Camera.ImagePath, "captured_image.jpg")
	setDefault(&cfg.Classifier.ModelPath, "model_unquant2.tflite")
	setDefault(&cfg.Classifier.LabelsPath, "labels2.txt")

	if cfg.Classifier.InputSize == 0 {
		cfg.Classifier.InputSize = 224
	}

	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}

	setDefault(&cfg.Email.Username, cfg.Email.From)

	ch := &cfg.Channel
	setDefault(&ch.ClientID, "smart-lock")
	setDefault(&ch.CommandTopic, "raspi/lock")
	setDefault(&ch.TelemetryTopic, "raspi/data")

	if ch.StatusInterval == 0 {
		ch.StatusInterval = 30 * time.Second
	}

	if ch.KeepAlive == 0 {
		ch.KeepAlive = 60 * time.Second
	}

	if ch.PublishTimeout == 0 {
		ch.PublishTimeout = time.Second
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
