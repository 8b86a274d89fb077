// Package metrics содержит Prometheus-метрики сервиса похожих товаров.
//
// Категории:
//   - запросы: число и длительность рекомендаций и поиска по изображению
//   - индексы: размер каталога, словаря и базы векторов
//   - перестроение базы векторов: число и длительность, пропущенные изображения
//   - кэш рекомендаций: попадания и промахи
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	KindRecommend = "recommend"
	KindSearch    = "search"

	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeEmpty       = "empty_index"
	OutcomeExtraction  = "extraction_error"
	OutcomeUnavailable = "embedder_unavailable"
	OutcomeError       = "error"
)

var (
	// Запросы

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similarity_queries_total",
			Help: "Total number of similarity queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similarity_query_duration_seconds",
			Help:    "Duration of similarity queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"kind"},
	)

	// Индексы

	CatalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similarity_catalog_records",
			Help: "Number of records in the published catalog index",
		},
	)

	VocabularySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similarity_vocabulary_size",
			Help: "Number of terms in the published TF-IDF vocabulary",
		},
	)

	FeatureEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similarity_feature_entries",
			Help: "Number of images in the published feature database",
		},
	)

	// Перестроение базы векторов

	FeatureRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_feature_rebuilds_total",
			Help: "Total number of feature database rebuilds",
		},
	)

	FeatureRebuildFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_feature_rebuild_failures_total",
			Help: "Total number of feature database rebuilds aborted without publishing",
		},
	)

	FeatureRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similarity_feature_rebuild_duration_seconds",
			Help:    "Duration of feature database rebuilds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	FeatureSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_feature_skipped_images_total",
			Help: "Total number of dataset images skipped because extraction failed",
		},
	)

	// Кэш рекомендаций

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_recommend_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_recommend_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
	)
)

// RecordQuery записывает исход и длительность запроса.
func RecordQuery(kind, outcome string, d time.Duration) {
	QueriesTotal.WithLabelValues(kind, outcome).Inc()
	QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRebuild записывает завершённое перестроение базы векторов.
func RecordRebuild(entries, skipped int, d time.Duration) {
	FeatureRebuildsTotal.Inc()
	FeatureRebuildDuration.Observe(d.Seconds())
	FeatureSkippedTotal.Add(float64(skipped))
	FeatureEntries.Set(float64(entries))
}

// RecordRebuildFailure записывает перестроение, прерванное без публикации.
func RecordRebuildFailure() {
	FeatureRebuildFailuresTotal.Inc()
}

// RecordTextIndex записывает размер опубликованного текстового индекса.
func RecordTextIndex(records, vocabulary int) {
	CatalogRecords.Set(float64(records))
	VocabularySize.Set(float64(vocabulary))
}
