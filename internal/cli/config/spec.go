package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultServerURL  = "http://localhost:3000"
	DefaultTimeout    = 10 * time.Second
	DefaultBurst      = 1
	DefaultEngine     = "badger"
	DefaultGCInterval = 10 * time.Minute
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"
	DefaultOutput     = "table"

	homeDirName = ".phonebook"
)

// CLIConfig is the configuration of phonebook-cli.
type CLIConfig struct {
	Server   ServerSection   `koanf:"server" json:"server" yaml:"server"`
	Store    StoreSection    `koanf:"store" json:"store" yaml:"store"`
	Fallback FallbackSection `koanf:"fallback" json:"fallback" yaml:"fallback"`
	Log      LogSection      `koanf:"log" json:"log" yaml:"log"`
	Output   string          `koanf:"output" json:"output" yaml:"output"` // table, json, yaml
}

// ServerSection configures the remote api client.
type ServerSection struct {
	URL       string   `koanf:"url" json:"url" yaml:"url"`
	Timeout   Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
	RateLimit float64  `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int      `koanf:"burst" json:"burst" yaml:"burst"`
	CAFile    string   `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"` // PEM file or directory added to the system roots
}

// StoreSection configures the local store.
type StoreSection struct {
	Engine     string   `koanf:"engine" json:"engine" yaml:"engine"` // badger, memory
	Dir        string   `koanf:"dir" json:"dir" yaml:"dir"`
	Passphrase string   `koanf:"passphrase" json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	GCInterval Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
}

// FallbackSection configures the local store fallback.
type FallbackSection struct {
	Enabled        bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	VerifyPassword bool `koanf:"verify_password" json:"verify_password" yaml:"verify_password"`
}

// LogSection configures diagnostics logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// Keys lists every configuration key.
func Keys() []string {
	return []string{
		"server.url", "server.timeout", "server.rate_limit", "server.burst", "server.ca_file",
		"store.engine", "store.dir", "store.passphrase", "store.gc_interval",
		"fallback.enabled", "fallback.verify_password",
		"log.level", "log.format",
		"output",
	}
}

// Default returns the default configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: ServerSection{
			URL:     DefaultServerURL,
			Timeout: Duration(DefaultTimeout),
			Burst:   DefaultBurst,
		},
		Store: StoreSection{
			Engine:     DefaultEngine,
			Dir:        DefaultDataDir(),
			GCInterval: Duration(DefaultGCInterval),
		},
		Fallback: FallbackSection{
			Enabled: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Output: DefaultOutput,
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, homeDirName)
}

// DefaultConfigPath returns ~/.phonebook/cli.yaml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "cli.yaml")
}

// DefaultDataDir returns ~/.phonebook/data.
func DefaultDataDir() string {
	return filepath.Join(homeDir(), "data")
}

// Duration is a time.Duration written as "10s" in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by koanf.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
