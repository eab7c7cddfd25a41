package database

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// NewRedis connects to redis and fails fast when the server is unreachable.
func NewRedis(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}

	return client, nil
}
