package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/smart-lock/internal/channel/mqtt"
	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/service/updater"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is the settings file shipped with the release.
	ConfigPath string
	// UpdateFolder is the URL where update artifacts will be uploaded.
	UpdateFolder string
	// SkipBrokerCheck packages without connecting to the broker.
	SkipBrokerCheck bool
}

// packager prepares update metadata (manifest) for distribution.
type packager struct {
	// cfg holds the settings written into the release.
	cfg *config.Config
	// dir is the folder with the artifacts; empty means the working directory.
	dir string
	// desc contains the update manifest with files, roles, and executables.
	desc *updater.Description
}

var (
	// errUpdaterRunning indicates that an attempt was made to package while the updater is running.
	errUpdaterRunning = errors.New("the updater is running now")
	// errBrokerUnreachable is returned when the packaged settings cannot reach the broker.
	errBrokerUnreachable = errors.New("broker is not reachable with the packaged settings")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smart-lock-packager")

	if updater.IsUpdaterRunningNow(ctx) {
		return errUpdaterRunning
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	cfg.UpdateFolder = opts.UpdateFolder
	if err = config.Validate(cfg); err != nil {
		return err
	}

	if !opts.SkipBrokerCheck {
		if err = ensureBrokerReachable(ctx, cfg); err != nil {
			return err
		}
	}

	if err = config.Save(opts.ConfigPath, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	pkg := &packager{
		cfg:  cfg,
		desc: updater.NewDescription(),
	}

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// Run populates and writes the update description (manifest) to disk.
func (p *packager) Run(ctx context.Context) error {
	logger.Info(ctx, "Preparing update description")

	if err := p.fillDescription(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving update description", "path", p.path(updater.VersionFilename))

	if err := p.saveDescription(); err != nil {
		return err
	}

	logger.Info(ctx, p.nextSteps())

	return nil
}

// fillDescription populates roles, executables and file checksums into the manifest.
func (p *packager) fillDescription() error {
	for role, files := range updater.AllowedUserRoles() {
		p.desc.Roles[role] = slices.Clone(files)
	}

	maps.Copy(p.desc.Executables, updater.ExecutablesByUserRoles())

	for _, fileName := range updater.FilesWithChecksum() {
		filePath := p.path(fileName)

		if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filePath, os.ErrNotExist)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", filePath, err)
		}

		checksum, err := updater.GetFileChecksum(filePath)
		if err != nil {
			return err
		}

		p.desc.Files[fileName] = base64.StdEncoding.EncodeToString(checksum)
	}

	return nil
}

// saveDescription writes the manifest next to the artifacts.
func (p *packager) saveDescription() error {
	contents, err := yaml.Marshal(p.desc)
	if err != nil {
		return err
	}

	return os.WriteFile(p.path(updater.VersionFilename), contents, updater.DefaultFileMode)
}

// nextSteps returns human-readable guidance for the created files.
func (p *packager) nextSteps() string {
	files := slices.Sorted(maps.Keys(p.desc.Files))
	files = append(files, updater.VersionFilename)

	var builder strings.Builder

	builder.WriteString("Upload the following files to ")
	builder.WriteString(p.cfg.UpdateFolder)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))

	for _, role := range slices.Sorted(maps.Keys(p.desc.Roles)) {
		builder.WriteString("\n\nFor the \"")
		builder.WriteString(role)
		builder.WriteString("\" role, copy the following files to the machine:\n")
		builder.WriteString(strings.Join(p.desc.Roles[role], ",\n"))
		builder.WriteString("\nRun at startup: smart-lock-updater ")
		builder.WriteString(role)
	}

	return builder.String()
}

func (p *packager) path(fileName string) string {
	return filepath.Join(p.dir, fileName)
}

// ensureBrokerReachable connects with the packaged channel settings so a
// release never ships with a broker the device cannot reach.
func ensureBrokerReachable(ctx context.Context, cfg *config.Config) error {
	opts := mqtt.FromConfig(cfg)
	opts.ClientID = cfg.Channel.ClientID + "-packager"

	client, err := mqtt.Connect(ctx, opts, nil)
	if err != nil {
		return err
	}

	defer client.Close()

	if !client.IsConnected() {
		return fmt.Errorf("%w: %s", errBrokerUnreachable, cfg.Channel.Broker)
	}

	logger.InfoKV(ctx, "Verified connection to broker", "broker", cfg.Channel.Broker)

	return nil
}
