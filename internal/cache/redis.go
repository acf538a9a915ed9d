package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"filevault/internal/domain"
)

const defaultTimeout = 5 * time.Second

// storageErr помечает транспортную ошибку Redis как ErrStorageUnavailable,
// чтобы обработчики отдавали 503 вместо общей 500
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", domain.ErrStorageUnavailable, op, err)
}

// Client — обертка над Redis для fast store ссылок. Записи исчезают
// автоматически по TTL, фоновая очистка не нужна.
type Client struct {
	rdb *redis.Client
}

// NewClient создает клиента Redis и проверяет соединение
func NewClient(conf *Config) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr(),
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", conf.Addr(), err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis оборачивает готовое соединение (используется в тестах)
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetWithExpiry записывает значение с TTL
func (c *Client) SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return storageErr("SET", err)
	}

	return nil
}

// Get читает значение по ключу. Возвращает (false, nil) если ключа нет.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("GET", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Delete удаляет ключ. Отсутствие ключа не считается ошибкой.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return storageErr("DEL", err)
	}
	return nil
}

// Exists проверяет существование ключа
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, storageErr("EXISTS", err)
	}
	return n > 0, nil
}

// TTL возвращает оставшееся время жизни ключа.
// Отрицательное значение — ключа нет или TTL не установлен.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, storageErr("TTL", err)
	}
	return ttl, nil
}

// Increment атомарно увеличивает счетчик. На первой записи выставляет TTL,
// чтобы счетчик не пережил основную запись.
func (c *Client) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, storageErr("INCR", err)
	}

	if count == 1 && ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return count, storageErr("EXPIRE", err)
		}
	}

	return count, nil
}

// Decrement атомарно уменьшает счетчик (откат инкремента сверх квоты)
func (c *Client) Decrement(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, storageErr("DECR", err)
	}
	return count, nil
}

// GetInt читает целочисленное значение. Возвращает 0, если ключа нет.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("GET", err)
	}
	return n, nil
}

// Ping проверяет доступность Redis (health check)
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
