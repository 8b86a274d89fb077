package http

import (
	"errors"
	"net/http"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

const maxJSONBody = 1 << 20

type SimilarityHandler struct {
	similarityUC  usecase.SimilarityUC
	maxUploadSize int64
	logger        logger.Logger
}

func NewSimilarityHandler(similarityUC usecase.SimilarityUC, maxUploadSize int64, logger logger.Logger) *SimilarityHandler {
	return &SimilarityHandler{similarityUC: similarityUC, maxUploadSize: maxUploadSize, logger: logger}
}

// recommend
//
//	@Summary		Похожие товары
//	@Description	Возвращает до пяти товаров каталога, текстово похожих на указанный (сам товар исключается)
//	@Tags			similarity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendRequest	true	"id товара (поле id или _id)"
//	@Success		200		{object}	RecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404		{object}	ErrorResponse	"Товар не найден"
//	@Router			/api/v1/recommend [post]
func (h *SimilarityHandler) recommend(w http.ResponseWriter, r *http.Request) {
	id, err := parseRecommendRequest(r, maxJSONBody)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.similarityUC.RecommendByCatalogID(r.Context(), id)
	if err != nil {
		if errors.Is(err, e.ErrEmptyIndex) {
			WriteSuccess(w, http.StatusOK, &RecommendResponse{Recommended: []RecommendedItem{}})
			return
		}
		h.logger.Warnf("recommend %s: %s", id, err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// search
//
//	@Summary		Поиск по изображению
//	@Description	Возвращает до пяти изображений датасета, визуально похожих на загруженное
//	@Tags			similarity
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Изображение png, jpg или jpeg"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse	"Нет файла или неподдерживаемый тип"
//	@Failure		413		{object}	ErrorResponse	"Файл слишком большой"
//	@Failure		422		{object}	ErrorResponse	"Не удалось извлечь признаки"
//	@Failure		503		{object}	ErrorResponse	"ML-сервис недоступен"
//	@Router			/api/v1/search [post]
func (h *SimilarityHandler) search(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 32 << 20

	// запас на заголовки multipart
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	data, err := parseImage(r.MultipartForm.File["image"], h.maxUploadSize)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.similarityUC.SearchByImage(r.Context(), data)
	if err != nil {
		if errors.Is(err, e.ErrEmptyIndex) {
			WriteSuccess(w, http.StatusOK, &SearchResponse{Matches: []ImageMatch{}})
			return
		}
		h.logger.Errorf(err, "image search failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// healthz
//
//	@Summary		Состояние сервиса
//	@Tags			service
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		503	{object}	StatusResponse	"Индексы ещё не опубликованы"
//	@Router			/healthz [get]
func (h *SimilarityHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	if !h.similarityUC.Ready() {
		status = http.StatusServiceUnavailable
	}

	WriteSuccess(w, status, toStatusResponse(h.similarityUC.Status()))
}
