package updater

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

// Roles a machine can be updated for.
const (
	// RoleDevice is the Raspberry Pi running the lock daemon.
	RoleDevice = "device"
	// RoleOperator is a workstation with the control tool.
	RoleOperator = "operator"
)

const (
	// VersionFilename stores the update description pushed to machines.
	VersionFilename = "smart-lock-version.yaml"

	// MarkerFilename marks that the updater is running right now to avoid parallel execution.
	MarkerFilename = "smart-lock-update-marker.bin"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate update file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// Base executable names; platform helpers append extension when needed.
	baseDaemonExecutable  = "smart-lock"
	baseControlExecutable = "smart-lock-ctl"
	baseUpdaterExecutable = "smart-lock-updater"

	// markerLifetime is the period after which a stale update marker is ignored.
	markerLifetime = 30 * time.Second

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 16

	// versionCommandTimeout is the timeout for executing version commands.
	versionCommandTimeout = 10 * time.Second

	// stopGracePeriod is how long a process may take to exit after SIGTERM.
	stopGracePeriod = 5 * time.Second
)

// AllowedUserRoles returns artifact lists per role for the current platform.
func AllowedUserRoles() map[string][]string {
	return map[string][]string{
		RoleDevice: {
			daemonExecutable(),
			updaterExecutable(),
			config.DefaultConfigFilename,
		},
		RoleOperator: {
			controlExecutable(),
			updaterExecutable(),
			config.DefaultConfigFilename,
		},
	}
}

// ExecutablesByUserRoles returns the restart targets per role. The operator
// role has no long-running process.
func ExecutablesByUserRoles() map[string]string {
	return map[string]string{
		RoleDevice: daemonExecutable(),
	}
}

// VersionExecutables returns the binary asked for the installed version per role.
func VersionExecutables() map[string]string {
	return map[string]string{
		RoleDevice:   daemonExecutable(),
		RoleOperator: controlExecutable(),
	}
}

// FilesWithChecksum returns the list of artifacts to hash for this platform.
func FilesWithChecksum() []string {
	return []string{
		daemonExecutable(),
		controlExecutable(),
		updaterExecutable(),
		config.DefaultConfigFilename,
	}
}

// Description contains metadata about a published release.
type Description struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Files maps filenames to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
	// Roles maps role names to lists of files required for that role.
	Roles map[string][]string `yaml:"roles"`
	// Executables maps role names to their primary executable files.
	Executables map[string]string `yaml:"executables"`
}

// NewDescription produces a Description initialized with defaults.
func NewDescription() *Description {
	return &Description{
		VersionNumber: version.Short(),
		Files:         make(map[string]string, defaultMapCapacity),
		Roles:         make(map[string][]string, defaultMapCapacity),
		Executables:   make(map[string]string, defaultMapCapacity),
	}
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// IsUpdaterRunningNow checks presence of a marker file and attempts recovery if it looks stale.
func IsUpdaterRunningNow(ctx context.Context) bool {
	return isMarkerActive(ctx, MarkerFilename, time.Now())
}

func isMarkerActive(ctx context.Context, marker string, now time.Time) bool {
	logger.Debug(ctx, "Checking for the presence of an update marker")

	fileInfo, err := os.Stat(marker)
	if err == nil {
		if now.Sub(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The update marker is too old, attempting cleanup")

		if err = stopProcesses(ctx, map[string]struct{}{updaterExecutable(): {}}); err != nil {
			return true
		}

		return os.Remove(marker) != nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to read update marker", "error", err)
	}

	return false
}

// stopProcesses asks every other process whose executable is in names to
// terminate and kills the ones still alive after the grace period.
func stopProcesses(ctx context.Context, names map[string]struct{}) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	var stopping []*os.Process

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, found := names[process.Executable()]; !found {
			continue
		}

		runningProcess, findErr := os.FindProcess(process.Pid())
		if findErr != nil {
			return findErr
		}

		logger.InfoKV(ctx, "Stopping process", "executable", process.Executable(), "pid", process.Pid())

		if signalErr := runningProcess.Signal(syscall.SIGTERM); signalErr != nil {
			if err = runningProcess.Kill(); err != nil {
				return err
			}

			continue
		}

		stopping = append(stopping, runningProcess)
	}

	if len(stopping) == 0 {
		return nil
	}

	deadline := time.Now().Add(stopGracePeriod)

	for _, p := range stopping {
		for processAlive(p.Pid) && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}

		if processAlive(p.Pid) {
			logger.WarnKV(ctx, "Process ignored SIGTERM, killing it", "pid", p.Pid)

			if err = p.Kill(); err != nil {
				return err
			}
		}
	}

	return nil
}

func processAlive(pid int) bool {
	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}

	return ""
}

func daemonExecutable() string {
	return baseDaemonExecutable + getExecutableExtension()
}

func controlExecutable() string {
	return baseControlExecutable + getExecutableExtension()
}

func updaterExecutable() string {
	return baseUpdaterExecutable + getExecutableExtension()
}

// sliceToSet converts a slice to a set for quick lookups.
func sliceToSet[T comparable](elements []T) map[T]struct{} {
	result := make(map[T]struct{}, len(elements))
	for _, value := range elements {
		result[value] = struct{}{}
	}

	return result
}
