package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается Validate для недопустимых значений
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации движка.
// Порядок: значения по умолчанию -> YAML -> переменные окружения -> Validate.
type Config struct {
	Extend    ExtendConfig    `yaml:"extend"`
	Index     IndexConfig     `yaml:"index"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Level     LevelConfig     `yaml:"level"`
	Logging   LoggingConfig   `yaml:"logging"`
	Players   PlayersConfig   `yaml:"players"`
}

// ExtendConfig статическая запись параметров вытягивания
type ExtendConfig struct {
	MaxExtendLength        int     `yaml:"max_extend_length" env:"EXTEND_MAX_LENGTH"`
	DefaultLifetimeSeconds float64 `yaml:"default_lifetime_seconds" env:"EXTEND_DEFAULT_LIFETIME"` // ≤ 0 отключает истечение
	DefaultOpacity         float64 `yaml:"default_opacity" env:"EXTEND_DEFAULT_OPACITY"`
	ColliderActiveRadius   float64 `yaml:"collider_active_radius" env:"EXTEND_COLLIDER_RADIUS"`
	ColliderHysteresis     float64 `yaml:"collider_hysteresis" env:"EXTEND_COLLIDER_HYSTERESIS"`
	FootGuard              bool    `yaml:"foot_guard" env:"EXTEND_FOOT_GUARD"`
	TickRate               int     `yaml:"tick_rate" env:"EXTEND_TICK_RATE"`
}

type IndexConfig struct {
	InitialCapacity int `yaml:"initial_capacity" env:"EXTEND_INDEX_CAPACITY"`
	Workers         int `yaml:"workers" env:"EXTEND_INDEX_WORKERS"` // 0: по числу CPU
}

type EventBusConfig struct {
	Backend   string `yaml:"backend" env:"EXTEND_EVENTBUS_BACKEND"` // memory | jetstream
	URL       string `yaml:"url" env:"EXTEND_NATS_URL"`
	Stream    string `yaml:"stream" env:"EXTEND_NATS_STREAM"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort int    `yaml:"rest_port"`
	Mode     string `yaml:"mode" env:"GIN_MODE"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"EXTEND_OTEL_ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

type LevelConfig struct {
	LayoutPath   string `yaml:"layout_path" env:"EXTEND_LAYOUT"`
	SpawnPerTick int    `yaml:"spawn_per_tick"`
	Seed         int64  `yaml:"seed" env:"EXTEND_SEED"`
	Width        int    `yaml:"width"`
	Depth        int    `yaml:"depth"`
	MaxHeight    int    `yaml:"max_height"`
}

// PlayersConfig хранилище позиций игроков для защиты от замуровывания
type PlayersConfig struct {
	Backend       string `yaml:"backend" env:"EXTEND_PLAYERS_BACKEND"` // memory | redis
	RedisAddr     string `yaml:"redis_addr" env:"EXTEND_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"EXTEND_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"`
	TTLHours      int    `yaml:"ttl_hours"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"EXTEND_LOG_LEVEL"`
	Dir   string `yaml:"dir" env:"EXTEND_LOG_DIR"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Extend: ExtendConfig{
			MaxExtendLength:        16,
			DefaultLifetimeSeconds: 0,
			DefaultOpacity:         1,
			ColliderActiveRadius:   25,
			ColliderHysteresis:     15,
			FootGuard:              true,
			TickRate:               60,
		},
		Index: IndexConfig{InitialCapacity: 4096},
		EventBus: EventBusConfig{
			Backend:   "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "EXTEND_EVENTS",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "gridextend",
		},
		Level: LevelConfig{
			SpawnPerTick: 256,
			Seed:         1,
			Width:        32,
			Depth:        32,
			MaxHeight:    6,
		},
		Logging: LoggingConfig{Level: "info"},
		Players: PlayersConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTLHours:  24,
		},
	}
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "EXTEND_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берёт путь из EXTEND_CONFIG; без файла используются дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("EXTEND_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет диапазоны значений
func (c *Config) Validate() error {
	e := c.Extend
	switch {
	case e.MaxExtendLength < 1:
		return fmt.Errorf("%w: extend.max_extend_length must be ≥ 1, got %d", ErrInvalidConfig, e.MaxExtendLength)
	case e.DefaultOpacity < 0 || e.DefaultOpacity > 1:
		return fmt.Errorf("%w: extend.default_opacity must be in [0,1], got %v", ErrInvalidConfig, e.DefaultOpacity)
	case e.ColliderActiveRadius < 0:
		return fmt.Errorf("%w: extend.collider_active_radius must be ≥ 0", ErrInvalidConfig)
	case e.ColliderHysteresis < 0:
		return fmt.Errorf("%w: extend.collider_hysteresis must be ≥ 0", ErrInvalidConfig)
	case e.TickRate < 1:
		return fmt.Errorf("%w: extend.tick_rate must be ≥ 1, got %d", ErrInvalidConfig, e.TickRate)
	}

	if c.Index.InitialCapacity < 0 || c.Index.Workers < 0 {
		return fmt.Errorf("%w: index capacity and workers must be ≥ 0", ErrInvalidConfig)
	}

	switch c.EventBus.Backend {
	case "memory", "jetstream":
	default:
		return fmt.Errorf("%w: eventbus.backend %q (want memory or jetstream)", ErrInvalidConfig, c.EventBus.Backend)
	}

	switch c.Players.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: players.backend %q (want memory or redis)", ErrInvalidConfig, c.Players.Backend)
	}

	if c.Level.SpawnPerTick < 0 {
		return fmt.Errorf("%w: level.spawn_per_tick must be ≥ 0", ErrInvalidConfig)
	}
	return nil
}
