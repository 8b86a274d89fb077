package http

import (
	"encoding/json"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
)

// RecommendRequest: тело запроса рекомендаций. Достаточно одного из полей.
type RecommendRequest struct {
	ID      any `json:"id" swaggertype:"string"`
	MongoID any `json:"_id" swaggertype:"string"`
}

type RecommendResponse struct {
	Recommended []RecommendedItem `json:"recommended"`
}

type RecommendedItem struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Brand      string       `json:"brand"`
	Price      *json.Number `json:"price" swaggertype:"number"`
	Ratings    *float64     `json:"ratings"`
	Image      string       `json:"image"`
	Similarity float64      `json:"similarity"`
}

type SearchResponse struct {
	Matches []ImageMatch `json:"matches"`
}

type ImageMatch struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	URL      string  `json:"url"`
}

type RebuildResponse struct {
	Entries int `json:"entries"`
}

type ReloadResponse struct {
	Version        string `json:"version"`
	Records        int    `json:"records"`
	VocabularySize int    `json:"vocabulary_size"`
}

type StatusResponse struct {
	Status         string `json:"status"`
	CatalogSize    int    `json:"catalog_size"`
	VocabularySize int    `json:"vocabulary_size"`
	CatalogVersion string `json:"catalog_version"`
	FeatureCount   int    `json:"feature_count"`
	ModelVersion   string `json:"model_version"`
}

func toRecommendResponse(res *usecase.RecommendRes) *RecommendResponse {
	out := &RecommendResponse{Recommended: make([]RecommendedItem, 0, len(res.Items))}
	for _, it := range res.Items {
		item := RecommendedItem{
			ID:         it.ID,
			Title:      it.Title,
			Brand:      it.Brand,
			Ratings:    it.Ratings,
			Image:      it.Image,
			Similarity: it.Similarity,
		}
		if it.Price != nil {
			n := json.Number(it.Price.String())
			item.Price = &n
		}
		out.Recommended = append(out.Recommended, item)
	}
	return out
}

func toSearchResponse(res *usecase.SearchRes) *SearchResponse {
	out := &SearchResponse{Matches: make([]ImageMatch, 0, len(res.Matches))}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, ImageMatch{Filename: m.Filename, Score: m.Score, URL: m.URL})
	}
	return out
}

func toStatusResponse(s *usecase.StatusRes) *StatusResponse {
	status := "warming_up"
	if s.Ready {
		status = "ok"
	}

	return &StatusResponse{
		Status:         status,
		CatalogSize:    s.CatalogSize,
		VocabularySize: s.VocabularySize,
		CatalogVersion: s.CatalogVersion,
		FeatureCount:   s.FeatureCount,
		ModelVersion:   s.ModelVersion,
	}
}
