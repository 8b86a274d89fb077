package domain

import "math"

// ScoredRecord: товар каталога с оценкой текстовой близости.
type ScoredRecord struct {
	Record CatalogRecord
	Score  float64
}

// ImageMatch: изображение датасета с оценкой визуальной близости.
type ImageMatch struct {
	Filename string
	Score    float64
}

// RoundScore округляет оценку до 3 знаков после запятой для ответа клиенту.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
