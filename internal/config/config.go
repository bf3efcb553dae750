package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
//
// Precedence: environment (TERRADASH_*) > config file > defaults.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Terraform TerraformConfig `mapstructure:"terraform"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// PathsConfig locates every on-disk root the orchestrator touches.
//
// Only DataDir is required; empty members are derived beneath it.
type PathsConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	TemplatesDir string `mapstructure:"templates_dir"`
	TemplateJobs string `mapstructure:"template_jobs_dir"`
	CustomJobs   string `mapstructure:"custom_jobs_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
	UploadsDir   string `mapstructure:"uploads_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type TerraformConfig struct {
	// Binary is the external tool executable. Overridable so tests and
	// air-gapped installs can point at a wrapper.
	Binary string `mapstructure:"binary"`
}

const envPrefix = "TERRADASH"

// Load reads configuration from the optional file path plus environment.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.derivePaths()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(50*1024*1024))

	v.SetDefault("paths.data_dir", "./data")
	v.SetDefault("paths.templates_dir", "")
	v.SetDefault("paths.template_jobs_dir", "")
	v.SetDefault("paths.custom_jobs_dir", "")
	v.SetDefault("paths.logs_dir", "")
	v.SetDefault("paths.uploads_dir", "")
	v.SetDefault("paths.database_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("terraform.binary", "terraform")
}

// derivePaths fills empty path members from DataDir.
func (c *Config) derivePaths() {
	data := c.Paths.DataDir
	if c.Paths.TemplatesDir == "" {
		c.Paths.TemplatesDir = filepath.Join(data, "templates")
	}
	if c.Paths.TemplateJobs == "" {
		c.Paths.TemplateJobs = filepath.Join(data, "jobs")
	}
	if c.Paths.CustomJobs == "" {
		c.Paths.CustomJobs = filepath.Join(data, "custom_jobs")
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = filepath.Join(data, "logs")
	}
	if c.Paths.UploadsDir == "" {
		c.Paths.UploadsDir = filepath.Join(data, "uploads")
	}
	if c.Paths.DatabasePath == "" {
		c.Paths.DatabasePath = filepath.Join(data, "terradash.db")
	}
}

// ListenAddr returns the host:port pair the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
