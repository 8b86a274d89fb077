package qdrant

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const upsertBatchSize = 256

// pointNamespace: пространство имён UUIDv5 для точек датасета, один файл всегда даёт один id.
var pointNamespace = uuid.MustParse("6f1c1d54-3b9e-4a57-9d8e-2f6c0d8a51b7")

// PointsClient: часть qdrant.Client, нужная репозиторию.
type PointsClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

// EmbeddingRepo зеркалирует базу векторов изображений в коллекцию Qdrant.
type EmbeddingRepo struct {
	client     PointsClient
	collection string
}

func NewEmbeddingRepo(client PointsClient, collection string) *EmbeddingRepo {
	return &EmbeddingRepo{
		client:     client,
		collection: collection,
	}
}

// PointID возвращает детерминированный id точки для файла датасета.
func PointID(filename string) string {
	return uuid.NewSHA1(pointNamespace, []byte(filename)).String()
}

// PublishFeatures заменяет содержимое коллекции новой базой: точки пишутся батчами
// с меткой поколения, затем удаляются точки прежних поколений.
func (q *EmbeddingRepo) PublishFeatures(ctx context.Context, req *usecase.PublishFeaturesReq) error {
	generation := req.RebuiltAt.UnixNano()
	entries := req.Database.Entries()

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, entry := range entries[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(entry.Filename)),
				Vectors: qdrant.NewVectors(entry.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"filename":      entry.Filename,
					"model_version": req.ModelVersion,
					"generation":    generation,
				}),
			})
		}

		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewMatchInt("generation", generation)},
		}),
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
