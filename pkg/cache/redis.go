package cache

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis options. Only Addr is required; other zero values fall back to defaults.
type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	UseTLS       bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int
}

// New returns a configured redis.Client and verifies connectivity with PING.
func New(ctx context.Context, cfg Config) (*redis.Client, func(), error) {
	opts := &redis.Options{
		Addr:            cfg.Addr,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     defaultDuration(cfg.DialTimeout, 3*time.Second),
		ReadTimeout:     defaultDuration(cfg.ReadTimeout, 500*time.Millisecond),
		WriteTimeout:    defaultDuration(cfg.WriteTimeout, 500*time.Millisecond),
		PoolSize:        defaultInt(cfg.PoolSize, 10),
		MinIdleConns:    2,
		MaxRetries:      defaultInt(cfg.MaxRetries, 2),
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// NewOptional connects only when an address is configured. A nil client with a no-op closer
// is returned otherwise, and callers fall back to process-local behaviour.
func NewOptional(ctx context.Context, logger *zap.Logger, cfg Config) (*redis.Client, func(), error) {
	if cfg.Addr == "" {
		logger.Info("Redis not configured; provider rate limit is enforced per instance")
		return nil, func() {}, nil
	}
	client, closer, err := New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Redis client initialized", zap.String("addr", cfg.Addr))
	return client, closer, nil
}

func defaultDuration(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}

func defaultInt(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}
