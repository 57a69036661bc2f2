package updater

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/smart-lock/internal/api/grpc/health"
	"github.com/oshokin/smart-lock/internal/config"
)

// TestParseVersionFromOutput reads the version subcommand format.
func TestParseVersionFromOutput(t *testing.T) {
	t.Parallel()

	got, err := parseVersionFromOutput("smart-lock 0.3.0 (commit abc123, built 2026-01-01)\n")
	require.NoError(t, err)
	require.Equal(t, "0.3.0", got)

	_, err = parseVersionFromOutput("garbage")
	require.ErrorIs(t, err, errInvalidVersionOutput)
}

// TestRoles lists the daemon only for the device.
func TestRoles(t *testing.T) {
	t.Parallel()

	roles := AllowedUserRoles()
	require.Contains(t, roles[RoleDevice], daemonExecutable())
	require.Contains(t, roles[RoleOperator], controlExecutable())
	require.NotContains(t, roles[RoleOperator], daemonExecutable())

	require.Equal(t, daemonExecutable(), ExecutablesByUserRoles()[RoleDevice])
	require.NotContains(t, ExecutablesByUserRoles(), RoleOperator)

	for _, files := range roles {
		for _, name := range files {
			require.Contains(t, FilesWithChecksum(), name)
		}
	}
}

// TestUpdateFlow downloads changed files and applies them in place.
func TestUpdateFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	published := t.TempDir()
	installed := t.TempDir()

	artifacts := map[string]string{
		controlExecutable():          "new ctl binary",
		updaterExecutable():          "new updater binary",
		config.DefaultConfigFilename: "channel: {}\n",
	}

	desc := NewDescription()
	desc.Roles[RoleOperator] = AllowedUserRoles()[RoleOperator]

	for name, contents := range artifacts {
		target := filepath.Join(published, name)
		require.NoError(t, os.WriteFile(target, []byte(contents), 0o600))

		checksum, err := GetFileChecksum(target)
		require.NoError(t, err)

		desc.Files[name] = base64.StdEncoding.EncodeToString(checksum)
	}

	manifest, err := yaml.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(published, VersionFilename), manifest, 0o600))

	server := httptest.NewServer(http.FileServer(http.Dir(published)))
	t.Cleanup(server.Close)

	// The installed updater is already current, the ctl is outdated.
	require.NoError(t, os.WriteFile(filepath.Join(installed, controlExecutable()), []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(installed, updaterExecutable()), []byte("new updater binary"), 0o600))

	u := &runner{
		cfg:             &config.Config{UpdateFolder: server.URL + "/"},
		role:            RoleOperator,
		dir:             installed,
		localVersion:    desc.VersionNumber,
		httpClient:      server.Client(),
		downloadedFiles: map[string]string{},
	}
	t.Cleanup(func() { u.cleanup(ctx) })

	require.NoError(t, u.fillUpdateDescription(ctx))
	require.Equal(t, desc.VersionNumber, u.description.VersionNumber)

	versionNeeded, err := u.determineUpdateNeeded(ctx)
	require.NoError(t, err)
	require.False(t, versionNeeded)
	require.True(t, u.IsUpdateNeeded)

	require.NoError(t, u.downloadFiles(ctx))
	require.NoError(t, u.updateFiles(ctx))

	for name, contents := range artifacts {
		got, readErr := os.ReadFile(filepath.Join(installed, name))
		require.NoError(t, readErr)
		require.Equal(t, contents, string(got), name)
	}

	u.IsUpdateNeeded = false
	require.NoError(t, u.validateChecksum())
	require.False(t, u.IsUpdateNeeded)
}

// TestFillUpdateDescription_MissingManifest reports the HTTP status.
func TestFillUpdateDescription_MissingManifest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	u := &runner{cfg: &config.Config{UpdateFolder: server.URL}, httpClient: server.Client()}

	err := u.fillUpdateDescription(context.Background())
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestValidateChecksum_UnknownRole fails without files for the role.
func TestValidateChecksum_UnknownRole(t *testing.T) {
	t.Parallel()

	u := &runner{role: RoleDevice, description: NewDescription()}
	require.ErrorIs(t, u.validateChecksum(), errNoRoleFiles)

	u.description = nil
	require.ErrorIs(t, u.validateChecksum(), errEmptyDescription)
}

// TestIsMarkerActive honours fresh markers and clears stale ones.
func TestIsMarkerActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	marker := filepath.Join(t.TempDir(), MarkerFilename)

	require.False(t, isMarkerActive(ctx, marker, time.Now()))

	require.NoError(t, os.WriteFile(marker, nil, 0o600))
	require.True(t, isMarkerActive(ctx, marker, time.Now()))

	require.False(t, isMarkerActive(ctx, marker, time.Now().Add(2*markerLifetime)))
	require.NoFileExists(t, marker)
}

// TestWaitServing returns once the daemon reports serving.
func TestWaitServing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := health.NewReporter()
	reporter.SetHealthy("sensor", false)

	go func() {
		_ = reporter.ServeListener(ctx, lis)
	}()

	go func() {
		time.Sleep(50 * time.Millisecond)
		reporter.SetHealthy("sensor", true)
	}()

	require.NoError(t, waitServing(ctx, lis.Addr().String(), 20*time.Millisecond, 5*time.Second))
}

// TestWaitServing_Timeout gives up when nothing listens.
func TestWaitServing_Timeout(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	err = waitServing(context.Background(), address, 10*time.Millisecond, 100*time.Millisecond)
	require.ErrorIs(t, err, errNotServing)
}
