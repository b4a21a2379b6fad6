package utils

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache shares cached views between server instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// Get treats redis errors as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache get %s failed: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Printf("Cache set %s failed: %v", key, err)
	}
}

// generationTTL must outlive the slowest read-through load.
const generationTTL = time.Hour

var errStaleGeneration = errors.New("cache key deleted during load")

func generationKey(key string) string {
	return "gen:" + key
}

// Delete removes keys and bumps their generations in one MULTI.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
			pipe.Expire(ctx, generationKey(key), generationTTL)
		}
		return nil
	})
	if err != nil {
		log.Printf("Cache delete %v failed: %v", keys, err)
	}
}

func (c *RedisCache) Generation(ctx context.Context, key string) uint64 {
	gen, err := c.client.Get(ctx, generationKey(key)).Uint64()
	if err != nil && err != redis.Nil {
		log.Printf("Cache generation %s failed: %v", key, err)
	}
	return gen
}

// SetIfGeneration watches the generation key, so a Delete racing the write aborts it.
func (c *RedisCache) SetIfGeneration(ctx context.Context, key string, gen uint64, val []byte, ttl time.Duration) bool {
	genKey := generationKey(key)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return true
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return false
	default:
		log.Printf("Cache set %s failed: %v", key, err)
		return false
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache     = (*RedisCache)(nil)
	_ io.Closer = (*RedisCache)(nil)
)
