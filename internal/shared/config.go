package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML or YAML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials"`
	Sink        SinkConfig        `toml:"sink" yaml:"sink"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Engine      EngineConfig      `toml:"engine" yaml:"engine"`
	Dispatch    DispatchConfig    `toml:"dispatch" yaml:"dispatch"`
}

// CredentialsConfig contains service-specific application credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google" yaml:"google"`
	ICloud ICloudConfig `toml:"icloud" yaml:"icloud"`
}

// GoogleConfig contains the OAuth client used to authorize Google Drive access.
type GoogleConfig struct {
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri" yaml:"redirect_uri"`
}

// ICloudConfig points at the HTTP proxy that fronts iCloud Photos.
type ICloudConfig struct {
	ProxyURL string `toml:"proxy_url" yaml:"proxy_url"`
}

// SinkConfig selects the destination service.
type SinkConfig struct {
	Kind string   `toml:"kind" yaml:"kind"`
	S3   S3Config `toml:"s3" yaml:"s3"`
}

// S3Config contains bucket settings for S3-compatible sinks.
type S3Config struct {
	Bucket       string `toml:"bucket" yaml:"bucket"`
	Region       string `toml:"region" yaml:"region"`
	Endpoint     string `toml:"endpoint" yaml:"endpoint"`
	Prefix       string `toml:"prefix" yaml:"prefix"`
	UsePathStyle bool   `toml:"use_path_style" yaml:"use_path_style"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// OAuthPort is the loopback port used by the CLI authorization flow.
type ServerConfig struct {
	Host      string `toml:"host" yaml:"host"`
	Port      int    `toml:"port" yaml:"port"`
	OAuthPort int    `toml:"oauth_port" yaml:"oauth_port"`
}

// EngineConfig tunes the transfer loop.
type EngineConfig struct {
	PageSize        int    `toml:"page_size" yaml:"page_size"`
	PersistEvery    int    `toml:"persist_every" yaml:"persist_every"`
	ContainerPrefix string `toml:"container_prefix" yaml:"container_prefix"`
}

// DispatchConfig controls the background queue, retries and the sweeper.
type DispatchConfig struct {
	Workers       int           `toml:"workers" yaml:"workers"`
	RateLimit     float64       `toml:"rate_limit" yaml:"rate_limit"`
	QueueSize     int           `toml:"queue_size" yaml:"queue_size"`
	MaxAttempts   int           `toml:"max_attempts" yaml:"max_attempts"`
	BaseBackoff   time.Duration `toml:"base_backoff" yaml:"base_backoff"`
	MaxBackoff    time.Duration `toml:"max_backoff" yaml:"max_backoff"`
	SoftTimeout   time.Duration `toml:"soft_timeout" yaml:"soft_timeout"`
	SweepSchedule string        `toml:"sweep_schedule" yaml:"sweep_schedule"`
	StaleAfter    time.Duration `toml:"stale_after" yaml:"stale_after"`
	SigningKey    string        `toml:"signing_key" yaml:"signing_key"`
}

// LoadConfig reads a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Sink.Kind {
	case SinkGoogleDrive:
	case SinkS3:
		if c.Sink.S3.Bucket == "" {
			return fmt.Errorf("%w: sink.s3.bucket is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink kind %q", ErrInvalidConfig, c.Sink.Kind)
	}

	if c.Engine.PageSize <= 0 {
		return fmt.Errorf("%w: engine.page_size must be positive", ErrInvalidConfig)
	}
	if c.Engine.PersistEvery <= 0 {
		return fmt.Errorf("%w: engine.persist_every must be positive", ErrInvalidConfig)
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("%w: dispatch.max_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
