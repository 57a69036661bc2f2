package updater

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/smart-lock/internal/api/grpc/health"
	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
)

var (
	errUpdaterAlreadyRunning = errors.New("the updater is already running")
	errNoUpdateFolder        = errors.New("update_folder is not configured")
	errEmptyDescription      = errors.New("update description is empty")
	errNoRoleFiles           = errors.New("unable to find files for role")
	errNoChecksum            = errors.New("checksum missing for file")
	errBadHTTPStatus         = errors.New("unexpected http status")
	errInvalidVersionOutput  = errors.New("invalid version output format")
	errUnknownRole           = errors.New("unknown role")
	errNotServing            = errors.New("daemon did not report serving")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// Role is the role to update for (device or operator).
	Role string
}

// healthWaitInterval is the delay between health probes after a restart.
const healthWaitInterval = time.Second

// healthWaitTimeout bounds the wait for a restarted daemon.
const healthWaitTimeout = 30 * time.Second

// runner holds the mutable state and helpers for a single update execution.
type runner struct {
	// description is the remote manifest describing the release.
	description *Description
	// cfg is the loaded settings.
	cfg *config.Config
	// role selects files and executables from the manifest.
	role string
	// dir is the installation folder; empty means the working directory.
	dir string
	// configFile is passed to the restarted daemon.
	configFile string
	// httpClient downloads the manifest and artifacts.
	httpClient *http.Client
	// localVersion is the detected installed version.
	localVersion string
	// IsUpdateNeeded reports whether local files differ from the manifest checksums.
	IsUpdateNeeded bool
	// temporaryDirectory holds new files before they are applied.
	temporaryDirectory string
	// downloadedFiles maps logical names to local temp paths.
	downloadedFiles map[string]string
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smart-lock-updater")

	up, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer up.cleanup(ctx)

	if err = up.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Updater run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Updater completed")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	role := strings.TrimSpace(opts.Role)
	if _, ok := AllowedUserRoles()[role]; !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownRole, role)
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if settings.UpdateFolder == "" {
		return nil, errNoUpdateFolder
	}

	if IsUpdaterRunningNow(ctx) {
		return nil, errUpdaterAlreadyRunning
	}

	updateMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, err
	}

	if err = updateMarker.Close(); err != nil {
		return nil, err
	}

	return &runner{
		cfg:             settings,
		role:            role,
		configFile:      opts.ConfigPath,
		httpClient:      http.DefaultClient,
		downloadedFiles: make(map[string]string, defaultMapCapacity),
	}, nil
}

// Run executes the workflow for this runner instance:
// 1) Detect local version.
// 2) Fetch remote manifest.
// 3) Compare versions and checksums.
// 4) Stop running binaries, download and apply files if needed.
// 5) Start the role executable and wait until it is healthy.
func (u *runner) Run(ctx context.Context) error {
	logger.Info(ctx, "Detecting local version from installed executable")

	u.localVersion = u.detectLocalVersion(ctx)

	logger.Info(ctx, "Downloading the update description")

	if err := u.fillUpdateDescription(ctx); err != nil {
		return fmt.Errorf("download update description: %w", err)
	}

	versionUpdateNeeded, err := u.determineUpdateNeeded(ctx)
	if err != nil {
		return err
	}

	if err = u.executeUpdateIfNeeded(ctx, versionUpdateNeeded); err != nil {
		return err
	}

	logger.Info(ctx, "Starting required executables")

	if err = u.startRequiredExecutables(ctx); err != nil {
		return fmt.Errorf("start required executables: %w", err)
	}

	return nil
}

// determineUpdateNeeded checks if an update is required based on version and checksum comparison.
func (u *runner) determineUpdateNeeded(ctx context.Context) (bool, error) {
	versionUpdateNeeded := u.compareVersions(ctx, u.localVersion, u.description.VersionNumber)

	logger.Info(ctx, "Verifying the checksum of local files against the manifest")

	if err := u.validateChecksum(); err != nil {
		return false, fmt.Errorf("validate checksum: %w", err)
	}

	return versionUpdateNeeded, nil
}

// executeUpdateIfNeeded performs the update process if either version or file updates are needed.
func (u *runner) executeUpdateIfNeeded(ctx context.Context, versionUpdateNeeded bool) error {
	if !versionUpdateNeeded && !u.IsUpdateNeeded {
		logger.Info(ctx, "No update required - version and files are current")
		return nil
	}

	u.logUpdateReasons(ctx, versionUpdateNeeded)

	logger.Info(ctx, "Downloading update files to a temporary folder")

	if err := u.downloadFiles(ctx); err != nil {
		return fmt.Errorf("download update files: %w", err)
	}

	logger.Info(ctx, "Stopping smart-lock processes")

	if err := stopProcesses(ctx, sliceToSet(FilesWithChecksum())); err != nil {
		return fmt.Errorf("stop smart-lock processes: %w", err)
	}

	logger.Info(ctx, "Updating local files")

	if err := u.updateFiles(ctx); err != nil {
		return fmt.Errorf("update local files: %w", err)
	}

	return nil
}

// logUpdateReasons logs the reasons why an update is needed.
func (u *runner) logUpdateReasons(ctx context.Context, versionUpdateNeeded bool) {
	if versionUpdateNeeded {
		logger.InfoKV(ctx, "Version update required", "reason", "version_mismatch")
	}

	if u.IsUpdateNeeded {
		logger.InfoKV(ctx, "File update required", "reason", "checksum_mismatch")
	}
}

// detectLocalVersion runs the role's binary with "version". An empty result
// means nothing usable is installed yet.
func (u *runner) detectLocalVersion(ctx context.Context) string {
	executable := u.localPath(VersionExecutables()[u.role])

	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, executable, "version").Output()
	if err != nil {
		logger.WarnKV(ctx, "Could not get local version", "executable", executable, "error", err)
		return ""
	}

	localVersion, err := parseVersionFromOutput(string(output))
	if err != nil {
		logger.WarnKV(ctx, "Unexpected version output", "executable", executable, "output", string(output))
		return ""
	}

	return localVersion
}

// parseVersionFromOutput extracts the semantic version from
// "smart-lock 0.3.0 (commit abc123, built ...)".
func parseVersionFromOutput(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], baseDaemonExecutable) {
		return "", errInvalidVersionOutput
	}

	return fields[1], nil
}

// compareVersions compares local vs remote versions and logs the decision.
func (u *runner) compareVersions(ctx context.Context, localVersion, remoteVersion string) bool {
	if localVersion == "" {
		logger.Info(ctx, "No local version detected, update needed")
		return true
	}

	if localVersion != remoteVersion {
		logger.InfoKV(ctx, "Version mismatch detected", "local", localVersion, "remote", remoteVersion)
		return true
	}

	logger.InfoKV(ctx, "Versions match, checking file integrity", "version", localVersion)

	return false
}

// fillUpdateDescription downloads and parses the remote update manifest.
func (u *runner) fillUpdateDescription(ctx context.Context) error {
	response, err := u.getFileBodyFromServer(ctx, VersionFilename)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var desc Description
	if err = yaml.Unmarshal(data, &desc); err != nil {
		return err
	}

	u.description = &desc

	return nil
}

// getFileBodyFromServer fetches a file from the update folder. The caller
// closes the body on success.
func (u *runner) getFileBodyFromServer(ctx context.Context, fileName string) (*http.Response, error) {
	updateURL, err := url.Parse(u.cfg.UpdateFolder)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	updateURL.Path = path.Join(updateURL.Path, fileName)
	finalURL := updateURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return response, nil
}

// validateChecksum compares local and manifest checksums. It returns early on
// the first mismatch because an update is already known to be needed.
func (u *runner) validateChecksum() error {
	if u.description == nil {
		return errEmptyDescription
	}

	files, ok := u.description.Roles[u.role]
	if !ok {
		return fmt.Errorf("role %s: %w", u.role, errNoRoleFiles)
	}

	for _, fileName := range files {
		needsUpdate, err := u.validateFileChecksum(fileName)
		if err != nil {
			return err
		}

		if needsUpdate {
			u.IsUpdateNeeded = true
			return nil
		}
	}

	return nil
}

// validateFileChecksum returns true if the local file differs from the manifest.
func (u *runner) validateFileChecksum(fileName string) (bool, error) {
	serverChecksum, err := u.getServerChecksum(fileName)
	if err != nil {
		return false, err
	}

	clientChecksum, err := u.getClientChecksum(fileName)
	if err != nil {
		return false, err
	}

	return !bytes.Equal(serverChecksum, clientChecksum), nil
}

// getServerChecksum retrieves and decodes the manifest checksum for a file.
func (u *runner) getServerChecksum(fileName string) ([]byte, error) {
	serverFileBase64, hasDescription := u.description.Files[fileName]
	if !hasDescription {
		return nil, fmt.Errorf("checksum for %s: %w", fileName, errNoChecksum)
	}

	return base64.StdEncoding.DecodeString(serverFileBase64)
}

// getClientChecksum returns nil for a missing file.
func (u *runner) getClientChecksum(fileName string) ([]byte, error) {
	localPath := u.localPath(fileName)

	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	return GetFileChecksum(localPath)
}

// downloadFiles downloads the role's files into a temporary directory.
func (u *runner) downloadFiles(ctx context.Context) error {
	temporaryDirectory, err := os.MkdirTemp("", "smart-lock-updater-")
	if err != nil {
		return err
	}

	u.temporaryDirectory = temporaryDirectory

	for _, fileName := range u.description.Roles[u.role] {
		if err = u.downloadFile(ctx, fileName); err != nil {
			return err
		}
	}

	return nil
}

func (u *runner) downloadFile(ctx context.Context, fileName string) error {
	response, err := u.getFileBodyFromServer(ctx, fileName)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	outputFileName := filepath.Join(u.temporaryDirectory, filepath.Base(fileName))

	outputFile, err := os.Create(outputFileName)
	if err != nil {
		return err
	}

	if _, err = io.Copy(outputFile, response.Body); err != nil {
		_ = outputFile.Close()
		return err
	}

	if err = outputFile.Close(); err != nil {
		return err
	}

	u.downloadedFiles[fileName] = outputFileName
	logger.InfoKV(ctx, "Downloaded file", "path", outputFileName)

	return nil
}

// updateFiles applies downloaded files using go-update with checksum validation.
func (u *runner) updateFiles(ctx context.Context) error {
	for fileName, downloadedFileName := range u.downloadedFiles {
		logger.InfoKV(ctx, "Updating file", "file", fileName)

		data, err := os.ReadFile(downloadedFileName)
		if err != nil {
			return err
		}

		checksum, err := u.getServerChecksum(fileName)
		if err != nil {
			return err
		}

		targetPath := u.localPath(fileName)

		if _, err = os.Stat(targetPath); os.IsNotExist(err) {
			if err = os.WriteFile(targetPath, nil, DefaultFileMode); err != nil {
				return err
			}
		}

		options := goupdate.Options{
			TargetPath: targetPath,
			TargetMode: DefaultFileMode,
			Checksum:   checksum,
			Hash:       DefaultChecksumFunction,
		}

		if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
			return err
		}

		_ = os.Remove(targetPath + ".old")
	}

	return nil
}

// startRequiredExecutables launches the role's daemon according to the
// manifest and waits for its health endpoint.
func (u *runner) startRequiredExecutables(ctx context.Context) error {
	if u.description == nil {
		return errEmptyDescription
	}

	executable, ok := u.description.Executables[u.role]
	if !ok {
		logger.InfoKV(ctx, "Role has nothing to start", "role", u.role)
		return nil
	}

	logger.InfoKV(ctx, "Starting executable", "executable", executable)

	//nolint:gosec,noctx // The daemon must outlive the updater; the name comes from the manifest.
	cmd := exec.Command(u.localPath(executable), "--config", u.configPath())
	if err := cmd.Start(); err != nil {
		return err
	}

	if err := cmd.Process.Release(); err != nil {
		return err
	}

	if u.cfg.Health.ListenAddress == "" {
		return nil
	}

	return waitServing(ctx, u.cfg.Health.ListenAddress, healthWaitInterval, healthWaitTimeout)
}

// waitServing polls the overall health entry until it reports SERVING.
func waitServing(ctx context.Context, address string, interval, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := health.Dial(ctx, address, health.WithCallTimeout(interval))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, checkErr := client.Check(ctx, "")
		if checkErr == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			logger.InfoKV(ctx, "Daemon is serving", "address", address)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w at %s: %w", errNotServing, address, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (u *runner) localPath(fileName string) string {
	if u.dir == "" {
		return fileName
	}

	return filepath.Join(u.dir, fileName)
}

func (u *runner) configPath() string {
	if u.configFile != "" {
		return u.configFile
	}

	return u.localPath(config.DefaultConfigFilename)
}

// cleanup removes temporary artifacts and the running marker.
func (u *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	if u.temporaryDirectory != "" {
		_ = os.RemoveAll(u.temporaryDirectory)
	}

	logger.Info(ctx, "The updater has been stopped")
}
