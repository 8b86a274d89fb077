package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

// EnsureCollection готовит коллекцию с косинусной метрикой под размерность извлекателя признаков.
// Коллекция другой размерности пересоздаётся: её содержимое полностью восстанавливается
// при следующей публикации базы векторов.
func EnsureCollection(ctx context.Context, client *QdrantClient, vectorSize uint64, log logger.Logger) error {
	name := client.cfg.QdrantCollectionName

	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		info, err := client.Client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read collection %s: %w", name, err)
		}

		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size == vectorSize {
			return nil
		}

		log.Warnf("qdrant collection %s has vector size %d, recreating with %d", name, size, vectorSize)
		if err := client.Client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}

	if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (q *QdrantClient) Close(_ context.Context) error {
	return q.Client.Close()
}
