package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

type CacheRepo struct {
	client r.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCacheRepo(client r.Cmdable, ttl time.Duration, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetRecommendations возвращает закэшированную выдачу. Промах: (nil, false, nil).
// Повреждённая запись удаляется и считается промахом.
func (c *CacheRepo) GetRecommendations(ctx context.Context, version string, id string) (*usecase.RecommendRes, bool, error) {
	key := c.recommendKey(version, id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, false, nil
		}
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	model, err := c.unmarshalRecommendFromCache(data)
	if err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		c.drop(ctx, key)
		return nil, false, nil
	}

	if model.ID != id {
		c.logger.Warnf("Cache ID mismatch: key_id: %s, model_id: %s", id, model.ID)
		c.drop(ctx, key)
		return nil, false, nil
	}

	return model.toUseCase(), true, nil
}

// SetRecommendations кэширует выдачу с TTL из конфигурации.
func (c *CacheRepo) SetRecommendations(ctx context.Context, version string, id string, res *usecase.RecommendRes) error {
	data, err := c.marshalRecommendForCache(toRedisModel(id, res))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Set(ctx, c.recommendKey(version, id), data, c.ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *CacheRepo) drop(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

// marshalRecommendForCache сериализует выдачу в JSON для кэша
func (c *CacheRepo) marshalRecommendForCache(model *RecommendRedisModel) ([]byte, error) {
	return json.Marshal(model)
}

// unmarshalRecommendFromCache десериализует JSON из кэша
func (c *CacheRepo) unmarshalRecommendFromCache(data []byte) (*RecommendRedisModel, error) {
	var model RecommendRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// recommendKey возвращает Redis-ключ выдачи для товара в версии каталога
func (c *CacheRepo) recommendKey(version string, id string) string {
	return fmt.Sprintf("recommend:%s:%s", version, id)
}
