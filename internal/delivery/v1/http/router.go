package http

import (
	"net/http"

	_ "github.com/DRSN-tech/go-similarity/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const requestIDHeader = "X-Request-ID"

type Router struct {
	router        *chi.Mux
	maxUploadSize int64
	logger        logger.Logger
}

func NewRouter(router *chi.Mux, maxUploadSize int64, logger logger.Logger) *Router {
	return &Router{router: router, maxUploadSize: maxUploadSize, logger: logger}
}

func (r *Router) Init(similarityUC usecase.SimilarityUC, featuresUC usecase.FeaturesUC, catalogUC usecase.CatalogUC) {
	r.router.Use(requestID)
	r.router.Use(middleware.Recoverer)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Handle("/metrics", promhttp.Handler())

	simHandler := NewSimilarityHandler(similarityUC, r.maxUploadSize, r.logger)
	r.router.Get("/healthz", simHandler.healthz)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerSimilarityRoutes(v1, simHandler)
		registerMaintenanceRoutes(v1, NewMaintenanceHandler(featuresUC, catalogUC, r.logger))
	})
}

func registerSimilarityRoutes(router chi.Router, h *SimilarityHandler) {
	router.Post("/recommend", h.recommend)
	router.Post("/search", h.search)
}

func registerMaintenanceRoutes(router chi.Router, h *MaintenanceHandler) {
	router.Post("/features/rebuild", h.rebuildFeatures)
	router.Post("/catalog/reload", h.reloadCatalog)
}

// requestID проставляет X-Request-ID, если клиент его не передал.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}
