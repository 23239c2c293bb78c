package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("EXTEND_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Extend.MaxExtendLength)
	assert.Equal(t, 0.0, cfg.Extend.DefaultLifetimeSeconds)
	assert.Equal(t, 25.0, cfg.Extend.ColliderActiveRadius)
	assert.Equal(t, 15.0, cfg.Extend.ColliderHysteresis)
	assert.Equal(t, "memory", cfg.EventBus.Backend)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
extend:
  max_extend_length: 8
  default_lifetime_seconds: 5
index:
  workers: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Extend.MaxExtendLength)
	assert.Equal(t, 5.0, cfg.Extend.DefaultLifetimeSeconds)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, 60, cfg.Extend.TickRate, "отсутствующие ключи сохраняют дефолт")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "extend:\n  max_extend_length: 8\n")
	t.Setenv("EXTEND_MAX_LENGTH", "12")
	t.Setenv("EXTEND_EVENTBUS_BACKEND", "jetstream")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Extend.MaxExtendLength)
	assert.Equal(t, "jetstream", cfg.EventBus.Backend)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeConfig(t, "level:\n  seed: 42\n")
	t.Setenv("EXTEND_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Level.Seed)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("нет файла", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		assert.Error(t, err)
	})

	t.Run("битый YAML", func(t *testing.T) {
		_, err := Load(writeConfig(t, "extend: [1, 2"))
		assert.Error(t, err)
	})

	t.Run("недопустимая длина", func(t *testing.T) {
		_, err := Load(writeConfig(t, "extend:\n  max_extend_length: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("неизвестный бэкенд", func(t *testing.T) {
		_, err := Load(writeConfig(t, "eventbus:\n  backend: kafka\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("неизвестное хранилище игроков", func(t *testing.T) {
		_, err := Load(writeConfig(t, "players:\n  backend: mongo\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestServerConfig_RESTPortFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("EXTEND_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("EXTEND_REST_PORT", "9001")
	assert.Equal(t, 9001, s.GetRESTPort())

	s.RESTPort = 7000
	assert.Equal(t, 7000, s.GetRESTPort())
}
