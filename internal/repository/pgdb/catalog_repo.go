package pgdb

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/go-similarity/internal/catalog"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

// Querier: часть pgxpool.Pool, нужная репозиторию.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CatalogRepo читает каталог из таблицы catalog_products: по одному JSON-документу на товар
// в порядке вставки.
type CatalogRepo struct {
	db     Querier
	logger logger.Logger
}

func NewCatalogRepo(db Querier, logger logger.Logger) *CatalogRepo {
	return &CatalogRepo{db: db, logger: logger}
}

// GetRawRecords возвращает документы каталога. Нечитаемые документы пропускаются.
func (r *CatalogRepo) GetRawRecords(ctx context.Context) ([]map[string]any, error) {
	const query = `SELECT doc FROM catalog_products ORDER BY position`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrLoad, err))
	}
	defer rows.Close()

	var raw []map[string]any
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrLoad, err))
		}

		record, err := catalog.DecodeRecord(doc)
		if err != nil {
			r.logger.Warnf("skipping unreadable catalog document: %v", err)
			continue
		}
		raw = append(raw, record)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrLoad, err))
	}

	return raw, nil
}

// LoadCatalog нормализует документы каталога так же, как при чтении из файла.
// Недоступная база даёт пустой каталог, как и отсутствующий файл. Ошибка возвращается
// только при отмене контекста.
func (r *CatalogRepo) LoadCatalog(ctx context.Context) (*domain.CatalogTable, error) {
	raw, err := r.GetRawRecords(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, e.Wrap(whereami.WhereAmI(), ctx.Err())
		}
		r.logger.Errorf(err, "failed to read catalog from postgres, using empty catalog")
		return domain.EmptyCatalogTable(), nil
	}

	return catalog.Load(raw, r.logger), nil
}
