package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/catalog"
	"github.com/DRSN-tech/go-similarity/internal/textindex"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// CatalogUseCase загружает каталог, строит по нему текстовый индекс и публикует его.
type CatalogUseCase struct {
	source     CatalogSource
	similarity *SimilarityUseCase
	events     CatalogEventPublisher
	opts       textindex.Options
	mu         sync.Mutex
	logger     logger.Logger
}

// NewCatalogUC создаёт сервис загрузки каталога. events может быть nil.
func NewCatalogUC(source CatalogSource, similarity *SimilarityUseCase, events CatalogEventPublisher,
	opts textindex.Options, logger logger.Logger) *CatalogUseCase {
	return &CatalogUseCase{
		source:     source,
		similarity: similarity,
		events:     events,
		opts:       opts,
		logger:     logger,
	}
}

// Reload читает каталог из источника, строит индекс и атомарно публикует его.
// До завершения Reload запросы обслуживает предыдущий индекс. Параллельные вызовы
// выполняются по очереди, поэтому последним публикуется последний прочитанный каталог.
func (uc *CatalogUseCase) Reload(ctx context.Context) (*CatalogLoadedReq, error) {
	const op = "CatalogUseCase.Reload"

	uc.mu.Lock()
	defer uc.mu.Unlock()

	table, err := uc.source.LoadCatalog(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	index, err := textindex.Build(ctx, table, uc.opts)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	version := catalog.Fingerprint(table)
	uc.similarity.Publish(index, version)

	req := &CatalogLoadedReq{
		Version:        version,
		Records:        index.Len(),
		VocabularySize: index.VocabularySize(),
		LoadedAt:       time.Now().UTC(),
	}

	if uc.events != nil {
		if err := uc.events.PublishCatalogLoaded(ctx, req); err != nil {
			uc.logger.Errorf(err, "failed to publish catalog loaded event")
		}
	}

	return req, nil
}
