package config

// Redis backs the distributed rate limiter, the response cache and the
// reminder queue. A failed ping at startup yields a nil client and callers
// degrade to in-process limiting and no caching.

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand, used when host/port are not both set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_REMINDER_DB – database number for reminder jobs (default REDIS_DB)
//   REDIS_TLS – enable TLS when "true" or "1"
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	ReminderDB int
	TLS        bool
}

func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	db := envInt("REDIS_DB", 0)
	tlsEnv := os.Getenv("REDIS_TLS")
	return RedisConfig{
		Addr:       addr,
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         db,
		ReminderDB: envInt("REDIS_REMINDER_DB", db),
		TLS:        strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
	}
}

// TLSConfig returns the client TLS settings or nil when TLS is off.
func (c RedisConfig) TLSConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// NewRedisClient connects with the given settings and pings the server.
// The returned client is nil if the server cannot be reached.
func NewRedisClient(c RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.TLSConfig(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
