package usecase

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

// ImageEmbedder превращает байты изображения в вектор признаков фиксированной длины.
// Реализация не хранит состояния запроса и безопасна для параллельных вызовов.
type ImageEmbedder interface {
	Embed(ctx context.Context, data []byte) ([]float32, error)
	Dimensions() int
	ModelVersion() string
}

// FeatureProvider отдаёт текущую опубликованную базу векторов изображений.
type FeatureProvider interface {
	Current() *domain.FeatureDatabase
}

// FeaturePublisher получает новую базу векторов после перестроения (зеркало в Qdrant, события в Kafka).
type FeaturePublisher interface {
	PublishFeatures(ctx context.Context, req *PublishFeaturesReq) error
}

// TextIndex: построенный текстовый индекс каталога.
type TextIndex interface {
	TopK(id string, k int, excludeSelf bool) ([]domain.ScoredRecord, error)
	Len() int
	VocabularySize() int
}

// CatalogSource отдаёт нормализованную таблицу каталога (файл JSON или Postgres).
type CatalogSource interface {
	LoadCatalog(ctx context.Context) (*domain.CatalogTable, error)
}

// CatalogEventPublisher сообщает внешним системам о загрузке нового каталога.
type CatalogEventPublisher interface {
	PublishCatalogLoaded(ctx context.Context, req *CatalogLoadedReq) error
}
