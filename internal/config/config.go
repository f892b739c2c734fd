// Package config provides configuration management for dexkeep.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/dexkeep"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/dexkeep"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey     = errors.New("invalid configuration key")
	ErrInvalidBackend = errors.New("invalid storage backend")
	ErrInvalidFormat  = errors.New("invalid log format")
	ErrInvalidValue   = errors.New("invalid configuration value")
	ErrNoEditor       = errors.New("$EDITOR environment variable not set")
)

// validBackends contains the allowed storage backends (unexported).
var validBackends = map[string]bool{
	"json":   true,
	"sqlite": true,
}

// validFormats contains the allowed log formats (unexported).
var validFormats = map[string]bool{
	"text":   true,
	"json":   true,
	"logfmt": true,
}

// durationKeys are validated as Go durations by Set.
var durationKeys = map[string]bool{
	"catalog.ttl":          true,
	"remote.timeout":       true,
	"remote.instances_ttl": true,
	"sync.interval":        true,
	"receiver.token_ttl":   true,
}

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full dexkeep configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Log      LogConfig      `mapstructure:"log"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=json sqlite"`
	Path    string `mapstructure:"path" validate:"required"`
	Logs    string `mapstructure:"logs" validate:"required"`
	Keyring string `mapstructure:"keyring"`
}

// CatalogConfig holds variant catalog settings.
type CatalogConfig struct {
	// Source is a local file path or an http(s) URL. Empty uses the
	// remote store's catalog when a remote is configured.
	Source string        `mapstructure:"source"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// RemoteConfig holds remote store settings.
type RemoteConfig struct {
	URL          string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	InstancesTTL time.Duration `mapstructure:"instances_ttl" validate:"gte=0"`
}

// SyncConfig holds sync agent settings.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
	Device   string        `mapstructure:"device"`
}

// ReceiverConfig holds reference receiver settings.
type ReceiverConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required,hostname_port"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"gte=0"`
	Data     string        `mapstructure:"data"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json logfmt"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// CatalogURL returns the URL the catalog is fetched from, or empty when
// the catalog is a local file.
func (c *Config) CatalogURL() string {
	if isURL(c.Catalog.Source) {
		return c.Catalog.Source
	}
	if c.Catalog.Source == "" && c.Remote.URL != "" {
		return strings.TrimRight(c.Remote.URL, "/") + "/catalog.json"
	}
	return ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("DEXKEEP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("storage.path", "DEXKEEP_STORAGE_PATH", "DEXKEEP_STATE")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("catalog.source", "DEXKEEP_CATALOG_SOURCE", "DEXKEEP_CATALOG")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("remote.url", "DEXKEEP_REMOTE_URL", "DEXKEEP_REMOTE")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("receiver.secret", "DEXKEEP_RECEIVER_SECRET", "DEXKEEP_SECRET")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("storage.backend", "json")
	l.v.SetDefault("storage.path", "~/.local/share/dexkeep/state.json")
	l.v.SetDefault("storage.logs", "~/.local/share/dexkeep/logs")
	l.v.SetDefault("storage.keyring", "")
	l.v.SetDefault("catalog.source", "")
	l.v.SetDefault("catalog.ttl", "24h")
	l.v.SetDefault("remote.url", "")
	l.v.SetDefault("remote.timeout", "30s")
	l.v.SetDefault("remote.instances_ttl", "5m")
	l.v.SetDefault("sync.interval", "5m")
	l.v.SetDefault("sync.device", "")
	l.v.SetDefault("receiver.addr", "127.0.0.1:8080")
	l.v.SetDefault("receiver.secret", "")
	l.v.SetDefault("receiver.token_ttl", "720h")
	l.v.SetDefault("receiver.data", "~/.local/share/dexkeep/receiver")
	l.v.SetDefault("log.format", "text")
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand paths
	cfg.Storage.Path = l.expandPath(cfg.Storage.Path)
	cfg.Storage.Logs = l.expandPath(cfg.Storage.Logs)
	cfg.Receiver.Data = l.expandPath(cfg.Receiver.Data)
	if !isURL(cfg.Catalog.Source) {
		cfg.Catalog.Source = l.expandPath(cfg.Catalog.Source)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set sets a configuration value by dot-notation key.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := validateValue(key, value); err != nil {
		return err
	}

	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// validateValue checks value against the constraints of key.
func validateValue(key, value string) error {
	switch {
	case key == "storage.backend":
		if !validBackends[value] {
			return fmt.Errorf("%w: %s (valid: json, sqlite)", ErrInvalidBackend, value)
		}
	case key == "log.format":
		if value != "" && !validFormats[value] {
			return fmt.Errorf("%w: %s (valid: text, json, logfmt)", ErrInvalidFormat, value)
		}
	case key == "remote.url" || (key == "catalog.source" && isURL(value)):
		if value == "" {
			return nil
		}
		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
	case durationKeys[key]:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
	}
	return nil
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if validKeys[key] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		// Recurse into nested sections
		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}

// IsValidBackend reports whether name is a storage backend.
func IsValidBackend(name string) bool {
	return validBackends[name]
}

// ValidBackendNames returns the list of valid storage backends.
func ValidBackendNames() []string {
	return []string{"json", "sqlite"}
}
