package http

import (
	"net/http"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// MaintenanceHandler: ручки обслуживания индексов.
type MaintenanceHandler struct {
	featuresUC usecase.FeaturesUC
	catalogUC  usecase.CatalogUC
	logger     logger.Logger
}

func NewMaintenanceHandler(featuresUC usecase.FeaturesUC, catalogUC usecase.CatalogUC, logger logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{featuresUC: featuresUC, catalogUC: catalogUC, logger: logger}
}

// rebuildFeatures
//
//	@Summary		Перестроение базы векторов
//	@Description	Извлекает признаки всех изображений датасета и публикует новую базу
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/v1/features/rebuild [post]
func (h *MaintenanceHandler) rebuildFeatures(w http.ResponseWriter, r *http.Request) {
	db, err := h.featuresUC.Rebuild(r.Context())
	if err != nil {
		h.logger.Errorf(err, "feature rebuild failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &RebuildResponse{Entries: db.Len()})
}

// reloadCatalog
//
//	@Summary		Перезагрузка каталога
//	@Description	Перечитывает каталог, строит текстовый индекс и публикует его
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	ReloadResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/v1/catalog/reload [post]
func (h *MaintenanceHandler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalogUC.Reload(r.Context())
	if err != nil {
		h.logger.Errorf(err, "catalog reload failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &ReloadResponse{
		Version:        res.Version,
		Records:        res.Records,
		VocabularySize: res.VocabularySize,
	})
}
