package config

import (
	"fmt"
	"strconv"
	"time"
)

// LookupFunc resolves an environment variable, mirroring os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Environment variables that override the YAML file.
const (
	EnvBroker              = "SMART_LOCK_MQTT_BROKER"
	EnvClientID            = "SMART_LOCK_MQTT_CLIENT_ID"
	EnvSMTPHost            = "SMART_LOCK_SMTP_HOST"
	EnvSMTPUsername        = "SMART_LOCK_SMTP_USERNAME"
	EnvSMTPPassword        = "SMART_LOCK_SMTP_PASSWORD" //nolint:gosec // Variable name, not a credential.
	EnvSMTPTo              = "SMART_LOCK_SMTP_TO"
	EnvNearThreshold       = "SMART_LOCK_NEAR_THRESHOLD"
	EnvOccupiedThreshold   = "SMART_LOCK_OCCUPIED_THRESHOLD"
	EnvDwellDuration       = "SMART_LOCK_DWELL_DURATION"
	EnvConfidenceThreshold = "SMART_LOCK_CONFIDENCE_THRESHOLD"
	EnvPollInterval        = "SMART_LOCK_POLL_INTERVAL"
)

// applyEnv overlays environment values on cfg. Malformed numbers are errors.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}

	texts := map[string]*string{
		EnvBroker:       &cfg.Channel.Broker,
		EnvClientID:     &cfg.Channel.ClientID,
		EnvSMTPHost:     &cfg.Email.Host,
		EnvSMTPUsername: &cfg.Email.Username,
		EnvSMTPPassword: &cfg.Email.Password,
		EnvSMTPTo:       &cfg.Email.To,
	}

	for key, field := range texts {
		if value, ok := lookup(key); ok && value != "" {
			*field = value
		}
	}

	floats := map[string]*float64{
		EnvNearThreshold:       &cfg.Detection.NearThreshold,
		EnvOccupiedThreshold:   &cfg.Detection.OccupiedThreshold,
		EnvConfidenceThreshold: &cfg.Detection.ConfidenceThreshold,
	}

	for key, field := range floats {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}

		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}

		*field = parsed
	}

	durations := map[string]*time.Duration{
		EnvDwellDuration: &cfg.Detection.DwellDuration,
		EnvPollInterval:  &cfg.Detection.PollInterval,
	}

	for key, field := range durations {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}

		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}

		*field = parsed
	}

	return nil
}
