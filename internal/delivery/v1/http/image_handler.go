package http

import (
	"net/http"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
)

type ImageHandler struct {
	ingestUsecase usecase.IngestUC
	logger        logger.Logger
}

func NewImageHandler(ingestUsecase usecase.IngestUC, logger logger.Logger) *ImageHandler {
	return &ImageHandler{ingestUsecase: ingestUsecase, logger: logger}
}

// insertImages
//
//	@Summary		Загрузка изображений
//	@Description	Считает эмбеддинги и сохраняет точки чанками. Если чанк упал, возвращает уже сохранённые записи и текст ошибки со статусом 502
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			request	body		InsertImagesRequest	true	"Пути к изображениям"
//	@Success		201		{object}	InsertImagesResponse
//	@Failure		400		{object}	ErrorResponse			"Ошибка валидации"
//	@Failure		409		{object}	ErrorResponse			"Коллекция занята"
//	@Failure		502		{object}	InsertImagesResponse	"Загрузка прервана"
//	@Router			/images [post]
func (h *ImageHandler) insertImages(w http.ResponseWriter, r *http.Request) {
	var req InsertImagesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.ingestUsecase.InsertImages(r.Context(), usecase.NewInsertImagesReq(req.Paths))
	if err != nil {
		if res == nil {
			h.logger.Warnf("%s", err.Error())
			WriteError(w, upstream(err))
			return
		}

		h.logger.Warnf("ingestion stopped after %d stored images: %s", len(res.Stored), err.Error())
		code, _ := ToHTTPResponse(upstream(err))
		WriteSuccess(w, code, InsertImagesResponse{
			Stored:  nonNilRecords(res.Stored),
			Catalog: toCatalogResponse(res.Snapshot, 0),
			Error:   err.Error(),
		})
		return
	}

	WriteSuccess(w, http.StatusCreated, InsertImagesResponse{
		Stored:  nonNilRecords(res.Stored),
		Catalog: toCatalogResponse(res.Snapshot, 0),
	})
}

// pendingPaths
//
//	@Summary		Пути, ещё не загруженные в каталог
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PendingPathsRequest	true	"Кандидаты на загрузку"
//	@Success		200		{object}	PendingPathsResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/images/pending [post]
func (h *ImageHandler) pendingPaths(w http.ResponseWriter, r *http.Request) {
	var req PendingPathsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	pending, err := h.ingestUsecase.PendingPaths(r.Context(), req.Paths)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, upstream(err))
		return
	}
	if pending == nil {
		pending = []string{}
	}

	WriteSuccess(w, http.StatusOK, PendingPathsResponse{Pending: pending})
}

func nonNilRecords(records []domain.ImageRecord) []domain.ImageRecord {
	if records == nil {
		return []domain.ImageRecord{}
	}
	return records
}
