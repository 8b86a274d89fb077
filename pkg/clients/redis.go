package clients

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// RedisClient: подключение к Redis, в котором хранится кэш рекомендаций.
type RedisClient struct {
	Client *r.Client
	addr   string
}

func NewRedisClient(cfg *cfg.RedisCfg) *RedisClient {
	client := r.NewClient(&r.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	return &RedisClient{
		Client: client,
		addr:   cfg.Addr,
	}
}

// ConnectRedis создаёт клиента и проверяет соединение. При ошибке клиент закрывается.
func ConnectRedis(ctx context.Context, cfg *cfg.RedisCfg) (*RedisClient, error) {
	client := NewRedisClient(cfg)
	if err := client.Ping(ctx); err != nil {
		_ = client.Client.Close()
		return nil, err
	}

	return client, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("redis %s: %w", c.addr, err))
	}

	return nil
}

func (c *RedisClient) Close(_ context.Context) error {
	return c.Client.Close()
}
