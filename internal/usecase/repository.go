package usecase

import "context"

// RecommendationCache кэширует выдачу рекомендаций по id товара.
// Ключ включает версию каталога, поэтому перестроение каталога инвалидирует кэш.
type RecommendationCache interface {
	GetRecommendations(ctx context.Context, version string, id string) (*RecommendRes, bool, error)
	SetRecommendations(ctx context.Context, version string, id string, res *RecommendRes) error
}

// CatalogRepository отдаёт сырые записи каталога из внешнего хранилища.
type CatalogRepository interface {
	GetRawRecords(ctx context.Context) ([]map[string]any, error)
}

// DatasetImageRepository выгружает изображения датасета из объектного хранилища.
type DatasetImageRepository interface {
	List(ctx context.Context) ([]DatasetObject, error)
	Download(ctx context.Context, key string, dstPath string) error
}
