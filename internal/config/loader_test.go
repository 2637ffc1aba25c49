package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/filechanges/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".filechanges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.Default(), *cfg)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	content := `git:
  binary: /usr/local/bin/git
  backend: libgit2
  branch: main
files:
  find_binary: gfind
  lister: walk
  state_dir: /var/lib/filechanges
  codec: lz4
  watch_interval: 30s
output:
  format: table
  color: false
  skip_vendor: true
logging:
  level: DEBUG
  json: true
metrics:
  addr: ":9090"
`

	cfg, err := config.LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/git", cfg.Git.Binary)
	assert.Equal(t, config.BackendLibgit2, cfg.Git.Backend)
	assert.Equal(t, "main", cfg.Git.Branch)
	assert.Equal(t, "gfind", cfg.Files.FindBinary)
	assert.Equal(t, config.ListerWalk, cfg.Files.Lister)
	assert.Equal(t, "/var/lib/filechanges", cfg.Files.StateDir)
	assert.Equal(t, config.CodecLZ4, cfg.Files.Codec)
	assert.Equal(t, 30*time.Second, cfg.Files.WatchInterval)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
	assert.True(t, cfg.Output.SkipVendor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadConfig_InvalidValue_FailsValidation(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "git:\n  backend: svn\n"))
	require.ErrorIs(t, err, config.ErrInvalidBackend)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "git: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("FILECHANGES_OUTPUT_FORMAT", "yaml")
	t.Setenv("FILECHANGES_FILES_CODEC", "gob")

	cfg, err := config.LoadConfig(writeConfig(t, "output:\n  format: text\n"))
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, config.CodecGob, cfg.Files.Codec)
}

func TestLoadConfig_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".filechanges.yaml"), []byte("git:\n  branch: release\n"), 0o600))

	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Git.Branch)
}

func TestLoadConfig_NoFileFound_UsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}
