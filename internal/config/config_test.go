package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Storage:  StorageConfig{Backend: "json", Path: "/tmp/state.json", Logs: "/tmp/logs"},
		Receiver: ReceiverConfig{Addr: "127.0.0.1:8080"},
	}
}

func TestLoader_Load_CreatesDefaultIfMissing(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Check defaults
	assert.Equal(t, "json", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(tmpHome, ".local", "share", "dexkeep", "state.json"), cfg.Storage.Path)
	assert.Contains(t, cfg.Storage.Logs, "logs")
	assert.Equal(t, 24*time.Hour, cfg.Catalog.TTL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 720*time.Hour, cfg.Receiver.TokenTTL)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Remote.URL)

	// Verify file was created
	_, err = os.Stat(loader.Path())
	assert.NoError(t, err)
}

func TestLoader_Load_ReadsExistingConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "dexkeep")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `
storage:
  backend: sqlite
  path: ~/dex/state.db
  logs: ~/dex/logs
catalog:
  source: ~/dex/variants.yaml
  ttl: 1h
remote:
  url: http://dex.example.com
  timeout: 10s
sync:
  interval: 90s
  device: happy_turing
log:
  format: json
`
	require.NoError(t, os.WriteFile(
		filepath.Join(configDir, "config.yaml"),
		[]byte(configContent),
		0644,
	))

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(tmpHome, "dex", "state.db"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(tmpHome, "dex", "variants.yaml"), cfg.Catalog.Source)
	assert.Equal(t, time.Hour, cfg.Catalog.TTL)
	assert.Equal(t, "http://dex.example.com", cfg.Remote.URL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "happy_turing", cfg.Sync.Device)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoader_Load_Invalid(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "dexkeep")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("storage:\n  backend: postgres\n"), 0644))

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	assert.Error(t, err)
}

func TestLoader_Load_EnvVarOverride(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("DEXKEEP_STATE", "/data/state.json")
	t.Setenv("DEXKEEP_REMOTE", "http://localhost:9000")
	t.Setenv("DEXKEEP_LOG_FORMAT", "logfmt")

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Env vars should override file defaults
	assert.Equal(t, "/data/state.json", cfg.Storage.Path)
	assert.Equal(t, "http://localhost:9000", cfg.Remote.URL)
	assert.Equal(t, "logfmt", cfg.Log.Format)
}

func TestLoader_Path(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	expected := filepath.Join(tmpHome, ".config", "dexkeep", "config.yaml")
	assert.Equal(t, expected, loader.Path())
}

func TestLoader_Get(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("valid key returns value", func(t *testing.T) {
		val, err := loader.Get("storage.backend")
		require.NoError(t, err)
		assert.Equal(t, "json", val)
	})

	t.Run("invalid key returns error", func(t *testing.T) {
		_, err := loader.Get("invalid.key")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestLoader_Set(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("sets valid key", func(t *testing.T) {
		err := loader.Set("storage.backend", "sqlite")
		require.NoError(t, err)

		val, err := loader.Get("storage.backend")
		require.NoError(t, err)
		assert.Equal(t, "sqlite", val)
	})

	t.Run("persists durations", func(t *testing.T) {
		require.NoError(t, loader.Set("sync.interval", "2m"))

		reloaded, err := NewLoader()
		require.NoError(t, err)
		cfg, err := reloaded.Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	})

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"rejects invalid key", "invalid.key", "value", ErrInvalidKey},
		{"rejects invalid backend", "storage.backend", "postgres", ErrInvalidBackend},
		{"rejects invalid format", "log.format", "xml", ErrInvalidFormat},
		{"rejects invalid duration", "catalog.ttl", "soon", ErrInvalidValue},
		{"rejects invalid url", "remote.url", "not a url", ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("allows clearing the remote", func(t *testing.T) {
		assert.NoError(t, loader.Set("remote.url", ""))
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("invalid backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Backend = "bolt"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Backend")
	})

	t.Run("invalid remote url", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote.URL = "::nope"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid receiver address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Receiver.Addr = "nowhere"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Addr")
	})

	t.Run("missing storage path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Path = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Path")
	})
}

func TestConfig_CatalogURL(t *testing.T) {
	tests := []struct {
		name   string
		source string
		remote string
		want   string
	}{
		{"explicit url", "https://cdn.example.com/variants.json", "http://remote", "https://cdn.example.com/variants.json"},
		{"local file", "/data/variants.json", "http://remote", ""},
		{"falls back to remote", "", "http://remote/", "http://remote/catalog.json"},
		{"nothing configured", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Catalog.Source = tt.source
			cfg.Remote.URL = tt.remote
			assert.Equal(t, tt.want, cfg.CatalogURL())
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"storage.backend is valid", "storage.backend", nil},
		{"storage.path is valid", "storage.path", nil},
		{"catalog.ttl is valid", "catalog.ttl", nil},
		{"remote.url is valid", "remote.url", nil},
		{"sync.device is valid", "sync.device", nil},
		{"receiver.secret is valid", "receiver.secret", nil},
		{"log.format is valid", "log.format", nil},
		{"storage is valid", "storage", nil},
		{"unknown.key returns error", "unknown.key", ErrInvalidKey},
		{"empty key returns error", "", ErrInvalidKey},
		{"random key returns error", "foo", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_expandPath(t *testing.T) {
	tmpHome := "/home/test"
	loader := &Loader{homeDir: tmpHome}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"expands ~/ prefix", "~/foo", filepath.Join(tmpHome, "foo")},
		{"expands ~ alone", "~", tmpHome},
		{"preserves absolute path", "/absolute/path", "/absolute/path"},
		{"preserves relative path", "relative/path", "relative/path"},
		{"handles nested paths", "~/foo/bar/baz", filepath.Join(tmpHome, "foo", "bar", "baz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loader.expandPath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
