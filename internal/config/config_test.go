package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(50*1024*1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "terraform", cfg.Terraform.Binary)
	assert.Equal(t, "localhost:8080", cfg.ListenAddr())
}

func TestLoad_DerivedPaths(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	data := cfg.Paths.DataDir
	assert.Equal(t, filepath.Join(data, "templates"), cfg.Paths.TemplatesDir)
	assert.Equal(t, filepath.Join(data, "jobs"), cfg.Paths.TemplateJobs)
	assert.Equal(t, filepath.Join(data, "custom_jobs"), cfg.Paths.CustomJobs)
	assert.Equal(t, filepath.Join(data, "logs"), cfg.Paths.LogsDir)
	assert.Equal(t, filepath.Join(data, "uploads"), cfg.Paths.UploadsDir)
	assert.Equal(t, filepath.Join(data, "terradash.db"), cfg.Paths.DatabasePath)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terradash.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9090
paths:
  data_dir: /var/lib/terradash
  logs_dir: /var/log/terradash
logging:
  level: debug
terraform:
  binary: /usr/local/bin/terraform
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/usr/local/bin/terraform", cfg.Terraform.Binary)

	// Explicit paths win; unset ones derive from the data dir.
	assert.Equal(t, "/var/log/terradash", cfg.Paths.LogsDir)
	assert.Equal(t, filepath.Join("/var/lib/terradash", "templates"), cfg.Paths.TemplatesDir)
	assert.Equal(t, filepath.Join("/var/lib/terradash", "terradash.db"), cfg.Paths.DatabasePath)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("TERRADASH_SERVER_HOST", "10.1.2.3")
	t.Setenv("TERRADASH_LOGGING_LEVEL", "warn")
	t.Setenv("TERRADASH_PATHS_DATA_DIR", "/srv/td")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "10.1.2.3", cfg.Server.Host)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/srv/td", cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join("/srv/td", "logs"), cfg.Paths.LogsDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
