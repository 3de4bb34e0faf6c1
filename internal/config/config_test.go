package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Setenv("KEYERD_DATA_DIR", t.TempDir())

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Keyer.Number)
	assert.Equal(t, 20, cfg.Keyer.WPM)
	assert.Equal(t, 1, cfg.Loop.TickIntervalMs)
	assert.Equal(t, "127.0.0.1:7373", cfg.Control.Addr)
	assert.Equal(t, 1, cfg.Output.DitNote)
	assert.Equal(t, 2, cfg.Output.DahNote)
	assert.True(t, strings.HasPrefix(cfg.Journal.Path, os.Getenv("KEYERD_DATA_DIR")))
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	assert.True(t, strings.HasSuffix(path, "config.toml"), path)
	assert.Contains(t, path, "keyerd")
}

func TestLoadNonexistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Keyer.Number)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"toml", "config.toml", "version = 1\n[keyer]\nnumber = 6\nwpm = 25\n[paddles]\nswap = true\n"},
		{"yaml", "config.yaml", "version: 1\nkeyer:\n  number: 6\n  wpm: 25\npaddles:\n  swap: true\n"},
		{"json", "config.json", `{"version":1,"keyer":{"number":6,"wpm":25},"paddles":{"swap":true}}`},
		{"autodetect", "keyerd.conf", "[keyer]\nnumber = 6\nwpm = 25\n[paddles]\nswap = true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 6, cfg.Keyer.Number)
			assert.Equal(t, 25, cfg.Keyer.WPM)
			assert.True(t, cfg.Paddles.Swap)
			// untouched sections keep their defaults
			assert.Equal(t, uint16(DefaultDitCode), cfg.Paddles.DitCode)
			assert.Equal(t, "info", cfg.Logging.Level)
		})
	}
}

func TestJSONSchemaRejectsWrongType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keyer":{"number":"six"}}`), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestJSONSchemaRejectsUnknownSection(t *testing.T) {
	err := ValidateJSON([]byte(`{"anchors":{}}`))
	assert.Error(t, err)
	assert.NoError(t, ValidateJSON([]byte(`{"keyer":{"wpm":30}}`)))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYERD_KEYER", "3")
	t.Setenv("KEYERD_WPM", "30")
	t.Setenv("KEYERD_DEVICE", "/dev/input/event7")
	t.Setenv("KEYERD_LOG_LEVEL", "debug")
	t.Setenv("KEYERD_CONTROL_ADDR", "0.0.0.0:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Keyer.Number)
	assert.Equal(t, 30, cfg.Keyer.WPM)
	assert.Equal(t, "/dev/input/event7", cfg.Paddles.Device)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Control.Addr)
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("KEYERD_WPM", "fast")
	_, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	assert.ErrorContains(t, err, "KEYERD_WPM")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"keyer too high", func(c *Config) { c.Keyer.Number = 10 }, "keyer.number"},
		{"keyer negative", func(c *Config) { c.Keyer.Number = -1 }, "keyer.number"},
		{"wpm too slow", func(c *Config) { c.Keyer.WPM = 4 }, "keyer.wpm"},
		{"wpm too fast", func(c *Config) { c.Keyer.WPM = 61 }, "keyer.wpm"},
		{"tick zero", func(c *Config) { c.Loop.TickIntervalMs = 0 }, "loop.tick_interval_ms"},
		{"tick not shorter than dit", func(c *Config) {
			c.Keyer.WPM = 60
			c.Loop.TickIntervalMs = 20
		}, "loop.tick_interval_ms"},
		{"note out of range", func(c *Config) { c.Output.DahNote = 128 }, "output.dah_note"},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"bad control addr", func(c *Config) { c.Control.Addr = "7373" }, "control.addr"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"bad version", func(c *Config) { c.Version = 99 }, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.True(t, verrs.Has(tt.field), "got %v", verrs)
		})
	}
}

func TestPassthroughSelectorIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keyer.Number = 0
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Keyer.Number = 9
	cfg.Output.NotesPath = "/tmp/notes"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Keyer, loaded.Keyer)
	assert.Equal(t, cfg.Output, loaded.Output)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoaderRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[keyer]\nwpm = 200\n"), 0600))

	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "keyer.wpm")
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	loader.OnChange(func(old, new *Config) {
		select {
		case changed <- new:
		default:
		}
	})
	require.NoError(t, loader.Watch())
	defer loader.Close()

	cfg := DefaultConfig()
	cfg.Keyer.WPM = 35
	require.NoError(t, SaveConfig(cfg, path))

	select {
	case got := <-changed:
		assert.Equal(t, 35, got.Keyer.WPM)
		assert.Equal(t, 35, loader.Config().Keyer.WPM)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
