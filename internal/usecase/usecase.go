package usecase

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

// SimilarityUC: запросы похожих товаров и изображений для транспортного слоя.
type SimilarityUC interface {
	RecommendByCatalogID(ctx context.Context, id string) (*RecommendRes, error)
	SearchByImage(ctx context.Context, data []byte) (*SearchRes, error)
	Status() *StatusRes
	Ready() bool
}

// CatalogUC: перезагрузка каталога.
type CatalogUC interface {
	Reload(ctx context.Context) (*CatalogLoadedReq, error)
}

// FeaturesUC: обслуживание базы векторов изображений.
type FeaturesUC interface {
	Rebuild(ctx context.Context) (*domain.FeatureDatabase, error)
}
