package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/metrics"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// DefaultTopK: число результатов рекомендаций и поиска по изображению.
const DefaultTopK = 5

// SimilarityUseCase отвечает на запросы «похожие товары» и «похожие изображения».
// Индексы публикуются целиком через Publish, запросы читают опубликованный снимок без блокировок.
type SimilarityUseCase struct {
	text     atomic.Pointer[publishedText]
	features FeatureProvider
	embedder ImageEmbedder
	cache    RecommendationCache
	imageURL string
	topK     int
	logger   logger.Logger
}

type publishedText struct {
	index   TextIndex
	version string
}

// NewSimilarityUC создаёт сервис запросов. cache может быть nil.
// imageURL: префикс ссылок на изображения датасета в ответе поиска.
func NewSimilarityUC(features FeatureProvider, embedder ImageEmbedder, cache RecommendationCache,
	imageURL string, logger logger.Logger) *SimilarityUseCase {
	return &SimilarityUseCase{
		features: features,
		embedder: embedder,
		cache:    cache,
		imageURL: imageURL,
		topK:     DefaultTopK,
		logger:   logger,
	}
}

// Publish делает текстовый индекс доступным для запросов. version: отпечаток каталога,
// по нему разделяются записи кэша разных каталогов.
func (uc *SimilarityUseCase) Publish(index TextIndex, version string) {
	uc.text.Store(&publishedText{index: index, version: version})
	metrics.RecordTextIndex(index.Len(), index.VocabularySize())
	uc.logger.Infof("text index published: %d records, %d terms, version %s", index.Len(), index.VocabularySize(), version)
}

// Ready сообщает, опубликован ли текстовый индекс.
func (uc *SimilarityUseCase) Ready() bool {
	return uc.text.Load() != nil
}

// RecommendByCatalogID возвращает до пяти товаров, текстово похожих на товар id, без самого товара.
func (uc *SimilarityUseCase) RecommendByCatalogID(ctx context.Context, id string) (*RecommendRes, error) {
	const op = "SimilarityUseCase.RecommendByCatalogID"
	start := time.Now()

	res, err := uc.recommend(ctx, id)
	metrics.RecordQuery(metrics.KindRecommend, outcome(err), time.Since(start))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res, nil
}

func (uc *SimilarityUseCase) recommend(ctx context.Context, id string) (*RecommendRes, error) {
	published := uc.text.Load()
	if published == nil {
		return nil, e.ErrEmptyIndex
	}

	if uc.cache != nil {
		cached, ok, err := uc.cache.GetRecommendations(ctx, published.version, id)
		if err != nil {
			uc.logger.Warnf("recommendation cache read failed for %s: %v", id, err)
		} else if ok {
			metrics.CacheHitsTotal.Inc()
			return cached, nil
		}
		metrics.CacheMissesTotal.Inc()
	}

	scored, err := published.index.TopK(id, uc.topK, true)
	if err != nil {
		return nil, err
	}

	items := make([]RecommendedItem, 0, len(scored))
	for i := range scored {
		items = append(items, NewRecommendedItem(&scored[i]))
	}
	res := NewRecommendRes(items)

	if uc.cache != nil {
		if err := uc.cache.SetRecommendations(ctx, published.version, id, res); err != nil {
			uc.logger.Warnf("recommendation cache write failed for %s: %v", id, err)
		}
	}

	return res, nil
}

// SearchByImage извлекает признаки загруженного изображения и возвращает до пяти
// ближайших изображений датасета по косинусной близости.
func (uc *SimilarityUseCase) SearchByImage(ctx context.Context, data []byte) (*SearchRes, error) {
	const op = "SimilarityUseCase.SearchByImage"
	start := time.Now()

	res, err := uc.search(ctx, data)
	metrics.RecordQuery(metrics.KindSearch, outcome(err), time.Since(start))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res, nil
}

func (uc *SimilarityUseCase) search(ctx context.Context, data []byte) (*SearchRes, error) {
	db := uc.features.Current()
	if db.Len() == 0 {
		return nil, e.ErrEmptyIndex
	}

	query, err := uc.embedder.Embed(ctx, data)
	if err != nil {
		return nil, err
	}

	matches, err := RankImages(query, db, uc.topK)
	if err != nil {
		return nil, err
	}

	out := make([]ImageMatchRes, 0, len(matches))
	for _, m := range matches {
		out = append(out, ImageMatchRes{
			Filename: m.Filename,
			Score:    domain.RoundScore(m.Score),
			URL:      uc.imageURL + m.Filename,
		})
	}

	return NewSearchRes(out), nil
}

// Status возвращает состояние опубликованных индексов.
func (uc *SimilarityUseCase) Status() *StatusRes {
	res := &StatusRes{
		FeatureCount: uc.features.Current().Len(),
		ModelVersion: uc.embedder.ModelVersion(),
	}

	if published := uc.text.Load(); published != nil {
		res.Ready = true
		res.CatalogSize = published.index.Len()
		res.VocabularySize = published.index.VocabularySize()
		res.CatalogVersion = published.version
	}

	return res
}

// RankImages линейно сравнивает запрос со всеми записями базы и возвращает до k лучших
// по убыванию близости. При равных оценках порядок: по имени файла.
func RankImages(query []float32, db *domain.FeatureDatabase, k int) ([]domain.ImageMatch, error) {
	if db.Len() == 0 {
		return nil, e.ErrEmptyIndex
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: %w", e.ErrExtraction, e.ErrEmptyVector)
	}

	matches := make([]domain.ImageMatch, 0, db.Len())
	for _, entry := range db.Entries() {
		if len(entry.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: %w: query has %d values, %s has %d",
				e.ErrExtraction, e.ErrVectorSizeMismatch, len(query), entry.Filename, len(entry.Embedding))
		}
		matches = append(matches, domain.ImageMatch{
			Filename: entry.Filename,
			Score:    Cosine(query, entry.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}

	return matches, nil
}

// Cosine возвращает косинусную близость векторов одинаковой длины; для нулевого вектора: 0.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, e.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, e.ErrEmptyIndex):
		return metrics.OutcomeEmpty
	case errors.Is(err, e.ErrExtraction):
		return metrics.OutcomeExtraction
	case errors.Is(err, e.ErrEmbedderUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
