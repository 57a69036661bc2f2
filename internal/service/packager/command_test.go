package packager

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/service/updater"
)

// TestPackager_WritesManifest hashes every artifact and records roles.
func TestPackager_WritesManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, name := range updater.FilesWithChecksum() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("contents of "+name), 0o600))
	}

	cfg := configWithFolder("https://updates.example.com/lock/")
	pkg := &packager{cfg: cfg, dir: dir, desc: updater.NewDescription()}

	require.NoError(t, pkg.fillDescription())
	require.NoError(t, pkg.saveDescription())

	raw, err := os.ReadFile(filepath.Join(dir, updater.VersionFilename))
	require.NoError(t, err)

	var desc updater.Description
	require.NoError(t, yaml.Unmarshal(raw, &desc))
	require.Len(t, desc.Files, len(updater.FilesWithChecksum()))
	require.Equal(t, updater.AllowedUserRoles(), desc.Roles)
	require.Equal(t, updater.ExecutablesByUserRoles(), desc.Executables)

	for name, encoded := range desc.Files {
		want, checksumErr := updater.GetFileChecksum(filepath.Join(dir, name))
		require.NoError(t, checksumErr)
		require.Equal(t, base64.StdEncoding.EncodeToString(want), encoded)
	}

	steps := pkg.nextSteps()
	require.True(t, strings.HasPrefix(steps, "Upload the following files to https://updates.example.com/lock/"))
	require.Contains(t, steps, "smart-lock-updater device")
	require.Contains(t, steps, "smart-lock-updater operator")
	require.Contains(t, steps, updater.VersionFilename)
}

// TestPackager_MissingArtifact names the missing file.
func TestPackager_MissingArtifact(t *testing.T) {
	t.Parallel()

	pkg := &packager{cfg: configWithFolder(""), dir: t.TempDir(), desc: updater.NewDescription()}

	err := pkg.fillDescription()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func configWithFolder(folder string) *config.Config {
	cfg := config.Default()
	cfg.UpdateFolder = folder

	return cfg
}
