package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/config"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg    *config.Config
	redis  *redis.Client
	client *client.Client
}

// newApp connects to Redis when configured and builds the catalog client.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if redisOpts != nil {
		a.redis = redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", redisOpts.Addr, err)
		}
	}

	a.client, err = client.New(cfg.ClientConfig(a.redis))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create anilist client: %w", err)
	}
	return a, nil
}

// Close releases the client and the Redis connection.
func (a *app) Close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
