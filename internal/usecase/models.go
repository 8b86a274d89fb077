package usecase

import (
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/shopspring/decimal"
)

// RECOMMENDATIONS

// RecommendRes: ответ на запрос рекомендаций по id товара.
type RecommendRes struct {
	Items []RecommendedItem
}

// RecommendedItem: похожий товар с полями для отображения и округлённой оценкой.
type RecommendedItem struct {
	ID         string
	Title      string
	Brand      string
	Price      *decimal.Decimal
	Ratings    *float64
	Image      string
	Similarity float64
}

// IMAGE SEARCH

// SearchRes: ответ на поиск по изображению.
type SearchRes struct {
	Matches []ImageMatchRes
}

// ImageMatchRes: изображение датасета с округлённой оценкой и ссылкой.
type ImageMatchRes struct {
	Filename string
	Score    float64
	URL      string
}

// STATUS

// StatusRes описывает состояние опубликованных индексов.
type StatusRes struct {
	Ready          bool
	CatalogSize    int
	VocabularySize int
	CatalogVersion string
	FeatureCount   int
	ModelVersion   string
}

// INFRASTRUCTURE

// PublishFeaturesReq: новая база векторов после перестроения.
type PublishFeaturesReq struct {
	Database     *domain.FeatureDatabase
	ModelVersion string
	RebuiltAt    time.Time
}

// DatasetObject: объект изображения в бакете датасета.
type DatasetObject struct {
	Key  string
	Size int64
}

// MAPPERS

func NewRecommendedItem(r *domain.ScoredRecord) RecommendedItem {
	return RecommendedItem{
		ID:         r.Record.ID,
		Title:      r.Record.Title,
		Brand:      r.Record.Brand,
		Price:      r.Record.Price,
		Ratings:    r.Record.Ratings,
		Image:      r.Record.FirstImageURL(),
		Similarity: domain.RoundScore(r.Score),
	}
}

func NewRecommendRes(items []RecommendedItem) *RecommendRes {
	return &RecommendRes{Items: items}
}

func NewSearchRes(matches []ImageMatchRes) *SearchRes {
	return &SearchRes{Matches: matches}
}

func NewPublishFeaturesReq(db *domain.FeatureDatabase, modelVersion string) *PublishFeaturesReq {
	return &PublishFeaturesReq{
		Database:     db,
		ModelVersion: modelVersion,
		RebuiltAt:    time.Now().UTC(),
	}
}

// CatalogLoadedReq: событие о публикации нового текстового индекса.
type CatalogLoadedReq struct {
	Version        string
	Records        int
	VocabularySize int
	LoadedAt       time.Time
}
