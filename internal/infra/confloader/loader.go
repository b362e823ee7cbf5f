package confloader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "PHONEBOOK_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	keys      map[string]string // env form -> dotted key
	loaded    bool
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithKeys declares the dotted keys the configuration understands.
// Environment variables are then matched against them, so keys that
// contain underscores (store.gc_interval) survive the mapping. Variables
// that match no declared key are ignored.
func WithKeys(keys ...string) Option {
	return func(l *Loader) {
		if l.keys == nil {
			l.keys = make(map[string]string, len(keys))
		}
		for _, k := range keys {
			l.keys[envForm(k)] = k
		}
	}
}

func envForm(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file, then the environment, and unmarshals the merged
// result into target. Fields of target that no source sets keep their
// values, so target should arrive holding the defaults.
//
// Flags are layered on top by the caller with LoadMap before Load or by
// overriding target afterwards.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	l.loaded = true
	return nil
}

// LoadFile loads a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads environment variables with the loader's prefix.
// PHONEBOOK_SERVER_URL maps to server.url.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", l.envKey)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// envKey maps an environment variable name to a dotted key.
// An empty result makes koanf skip the variable.
func (l *Loader) envKey(name string) string {
	name = strings.TrimPrefix(name, l.envPrefix)
	if l.keys != nil {
		return l.keys[strings.ToUpper(name)]
	}
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// LoadMap loads dotted keys from a map, used for flags and tests.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into target using koanf
// struct tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Get returns the raw value of key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// GetString returns key as a string.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt returns key as an int.
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool returns key as a bool.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// Exists reports whether any source set key.
func (l *Loader) Exists(key string) bool {
	return l.k.Exists(key)
}

// IsLoaded reports whether Load completed.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// All returns the merged configuration as a flat map.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

// Keys returns every loaded key.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

var errReadBytes = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf.Provider over a flat map of dotted keys.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

// Read unflattens the dotted keys so Unmarshal sees nested sections.
func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
