package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string
	DatabaseURL       string
	SessionSecret     string
	Cache             CacheConfig
	Redis             RedisConfig
	Store             StoreConfig
	ReconcileInterval time.Duration
}

type CacheConfig struct {
	Driver string // lru | redis
	Size   int
	TTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StoreConfig bounds the retries repositories make on transient database errors.
type StoreConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Load reads .env (if present) and the environment on top of the defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}
	return FromViper(New())
}

// New returns a viper instance with defaults set. Keys map to env vars with dots
// replaced by underscores, eg. database.url -> DATABASE_URL.
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("port", "8080")
	v.SetDefault("database.url", "host=localhost user=postgres password=postgres dbname=campuslink port=5432 sslmode=disable")
	v.SetDefault("session.secret", "secret_key_change_me")
	v.SetDefault("cache.driver", "lru")
	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", 300*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff", 100*time.Millisecond)
	v.SetDefault("reconcile.interval", 500*time.Millisecond)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:          v.GetString("port"),
		DatabaseURL:   v.GetString("database.url"),
		SessionSecret: v.GetString("session.secret"),
		Cache: CacheConfig{
			Driver: strings.ToLower(v.GetString("cache.driver")),
			Size:   v.GetInt("cache.size"),
			TTL:    v.GetDuration("cache.ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Store: StoreConfig{
			RetryAttempts: v.GetInt("store.retry_attempts"),
			RetryBackoff:  v.GetDuration("store.retry_backoff"),
		},
		ReconcileInterval: v.GetDuration("reconcile.interval"),
	}
	if cfg.Store.RetryAttempts < 1 {
		cfg.Store.RetryAttempts = 1
	}
	if cfg.Cache.Size < 1 {
		cfg.Cache.Size = 500
	}
	return cfg
}
