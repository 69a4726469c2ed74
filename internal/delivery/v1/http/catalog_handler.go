package http

import (
	"net/http"

	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
)

type CatalogHandler struct {
	catalogUsecase usecase.CatalogUC
	logger         logger.Logger
}

func NewCatalogHandler(catalogUsecase usecase.CatalogUC, logger logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalogUsecase: catalogUsecase, logger: logger}
}

// getCatalog
//
//	@Summary		Текущий снимок каталога
//	@Description	Возвращает число точек и список изображений из кэша. Деградированный снимок отдаётся со статусом degraded
//	@Tags			catalog
//	@Produce		json
//	@Param			limit	query		int	false	"Сколько записей вернуть"
//	@Success		200		{object}	CatalogResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный limit"
//	@Router			/catalog [get]
func (c *CatalogHandler) getCatalog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		c.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toCatalogResponse(c.catalogUsecase.Snapshot(), limit))
}

// refreshCatalog
//
//	@Summary		Обновление каталога
//	@Description	Пересчитывает точки коллекции и перечитывает список изображений
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Router			/catalog/refresh [post]
func (c *CatalogHandler) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	snap := c.catalogUsecase.Refresh(r.Context())
	if snap.Degraded() {
		c.logger.Warnf("catalog refresh degraded: %v", snap.Cause)
	}

	WriteSuccess(w, http.StatusOK, toCatalogResponse(snap, 0))
}
