package redis

import (
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/shopspring/decimal"
)

// RecommendRedisModel: выдача рекомендаций в том виде, в каком она хранится в кэше.
type RecommendRedisModel struct {
	ID    string                   `json:"id"`
	Items []RecommendItemRedisModel `json:"items"`
}

type RecommendItemRedisModel struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Brand      string           `json:"brand"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Ratings    *float64         `json:"ratings,omitempty"`
	Image      string           `json:"image"`
	Similarity float64          `json:"similarity"`
}

func toRedisModel(id string, res *usecase.RecommendRes) *RecommendRedisModel {
	items := make([]RecommendItemRedisModel, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, RecommendItemRedisModel{
			ID:         it.ID,
			Title:      it.Title,
			Brand:      it.Brand,
			Price:      it.Price,
			Ratings:    it.Ratings,
			Image:      it.Image,
			Similarity: it.Similarity,
		})
	}

	return &RecommendRedisModel{ID: id, Items: items}
}

func (m *RecommendRedisModel) toUseCase() *usecase.RecommendRes {
	items := make([]usecase.RecommendedItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, usecase.RecommendedItem{
			ID:         it.ID,
			Title:      it.Title,
			Brand:      it.Brand,
			Price:      it.Price,
			Ratings:    it.Ratings,
			Image:      it.Image,
			Similarity: it.Similarity,
		})
	}

	return usecase.NewRecommendRes(items)
}
