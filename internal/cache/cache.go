// cache - denylist отозванных refresh-токенов в Redis.
//
// Denylist дополняет проверку по хранилищу: после logout токен попадает сюда
// до своего естественного истечения и отсекается ещё до запроса к БД.
// Ключ - отпечаток SHA-256 токена, сам токен в Redis не хранится.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix - префикс ключей, если в конфигурации он пуст.
const DefaultPrefix = "accounts:rt:"

// Denylist - контракт хранилища отозванных refresh-токенов.
type Denylist interface {
	// Revoke помечает токен отозванным на ttl. ttl <= 0 - no-op.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	// IsRevoked сообщает, отозван ли токен.
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Close закрывает клиент Redis.
	Close() error
}

type redisDenylist struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisDenylist создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение.
func NewRedisDenylist(ctx context.Context, redisURL, prefix string) (Denylist, error) {
	const op = "cache.NewRedisDenylist"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewDenylist(rdb, prefix), nil
}

// NewDenylist оборачивает готовый клиент Redis.
func NewDenylist(rdb *redis.Client, prefix string) Denylist {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &redisDenylist{rdb: rdb, prefix: prefix}
}

func (d *redisDenylist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return d.prefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

// Храним как Redis Hash с полями: rev (1), at (unix момента отзыва).
func (d *redisDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	const op = "cache.Revoke"

	if token == "" || ttl <= 0 {
		return nil
	}

	key := d.key(token)

	pipe := d.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]string{
		"rev": "1",
		"at":  strconv.FormatInt(time.Now().Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	const op = "cache.IsRevoked"

	if token == "" {
		return false, nil
	}

	rev, err := d.rdb.HGet(ctx, d.key(token), "rev").Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return rev == "1", nil
}

func (d *redisDenylist) Close() error { return d.rdb.Close() }
