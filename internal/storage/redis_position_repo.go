package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей; 0: без истечения
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "gridextend:foot:",
		TTL:       24 * time.Hour,
	}
}

// RedisPositionRepository хранит позиции игроков в Redis
type RedisPositionRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *logging.Logger
}

// NewRedisPositionRepository подключается к Redis и проверяет соединение
func NewRedisPositionRepository(ctx context.Context, config RedisConfig) (*RedisPositionRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.GetComponentLogger("storage")
	logger.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisPositionRepository{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
		logger:    logger,
	}, nil
}

func (rpr *RedisPositionRepository) key(playerID string) string {
	return rpr.keyPrefix + playerID
}

// Save сохраняет позицию игрока
func (rpr *RedisPositionRepository) Save(ctx context.Context, playerID string, foot grid.Coord) error {
	if playerID == "" {
		return ErrInvalidPlayer
	}
	data, err := json.Marshal(PlayerPosition{PlayerID: playerID, Foot: foot, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	if err := rpr.client.Set(ctx, rpr.key(playerID), data, rpr.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// Load получает позицию игрока
func (rpr *RedisPositionRepository) Load(ctx context.Context, playerID string) (PlayerPosition, bool, error) {
	if playerID == "" {
		return PlayerPosition{}, false, ErrInvalidPlayer
	}

	data, err := rpr.client.Get(ctx, rpr.key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PlayerPosition{}, false, nil
	} else if err != nil {
		return PlayerPosition{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	var pos PlayerPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return PlayerPosition{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pos, true, nil
}

// Delete удаляет позицию игрока
func (rpr *RedisPositionRepository) Delete(ctx context.Context, playerID string) error {
	if playerID == "" {
		return ErrInvalidPlayer
	}
	n, err := rpr.client.Del(ctx, rpr.key(playerID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchSave записывает позиции пайплайном
func (rpr *RedisPositionRepository) BatchSave(ctx context.Context, positions map[string]grid.Coord) error {
	if len(positions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := rpr.client.Pipeline()
	for playerID, foot := range positions {
		if playerID == "" {
			return ErrInvalidPlayer
		}
		data, err := json.Marshal(PlayerPosition{PlayerID: playerID, Foot: foot, UpdatedAt: now})
		if err != nil {
			rpr.logger.Warn("⚠️ Failed to marshal position for %s: %v", playerID, err)
			continue
		}
		pipe.Set(ctx, rpr.key(playerID), data, rpr.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (rpr *RedisPositionRepository) Close() error {
	return rpr.client.Close()
}
