package http

import (
	"time"

	_ "github.com/DRSN-tech/style-recommender/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router    *chi.Mux
	logger    logger.Logger
	rateLimit int
}

// NewRouter создаёт роутер. rateLimit — запросов в минуту с одного IP, 0 отключает ограничение.
func NewRouter(router *chi.Mux, logger logger.Logger, rateLimit int) *Router {
	return &Router{router: router, logger: logger, rateLimit: rateLimit}
}

func (r *Router) Init(ingestUC usecase.IngestUC, catalogUC usecase.CatalogUC, recommendUC usecase.RecommendUC) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.router.Handle("/metrics", promhttp.Handler())
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		if r.rateLimit > 0 {
			v1.Use(httprate.LimitByIP(r.rateLimit, time.Minute))
		}

		registerCatalogRoutes(v1, NewCatalogHandler(catalogUC, r.logger))
		registerImageRoutes(v1, NewImageHandler(ingestUC, r.logger))
		registerRecommendRoutes(v1, NewRecommendHandler(recommendUC, r.logger))
	})
}

func registerCatalogRoutes(router chi.Router, h *CatalogHandler) {
	router.Route("/catalog", func(c chi.Router) {
		c.Get("/", h.getCatalog)
		c.Post("/refresh", h.refreshCatalog)
	})
}

func registerImageRoutes(router chi.Router, h *ImageHandler) {
	router.Route("/images", func(img chi.Router) {
		img.Post("/", h.insertImages)
		img.Post("/pending", h.pendingPaths)
	})
}

func registerRecommendRoutes(router chi.Router, h *RecommendHandler) {
	router.Post("/recommendations", h.recommend)
	router.Post("/search", h.search)
}
