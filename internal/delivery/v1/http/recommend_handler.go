package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
)

type RecommendHandler struct {
	recommendUsecase usecase.RecommendUC
	logger           logger.Logger
}

func NewRecommendHandler(recommendUsecase usecase.RecommendUC, logger logger.Logger) *RecommendHandler {
	return &RecommendHandler{recommendUsecase: recommendUsecase, logger: logger}
}

// recommend
//
//	@Summary		Рекомендации по отметкам
//	@Description	Возвращает до limit изображений по лайкам и дизлайкам. Без отметок ответ зависит от RECOMMEND_EMPTY_POLICY
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendRequest	true	"Лайки, дизлайки и limit"
//	@Success		200		{object}	ScoredImagesResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		502		{object}	ErrorResponse	"Хранилище недоступно"
//	@Router			/recommendations [post]
func (h *RecommendHandler) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	prefs, both := toPreferenceSet(req.Liked, req.Disliked)
	if len(both) > 0 {
		err := fmt.Errorf("%w: %s", e.ErrPreferenceOverlap, strings.Join(both, ","))
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	results, err := h.recommendUsecase.Recommend(r.Context(), usecase.NewRecommendReq(prefs.LikedIDs(), prefs.DislikedIDs(), req.Limit))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, upstream(err))
		return
	}

	WriteSuccess(w, http.StatusOK, ScoredImagesResponse{Results: results})
}

// search
//
//	@Summary		Поиск похожих изображений
//	@Description	Считает эмбеддинг одного изображения и ищет ближайшие точки коллекции
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SearchRequest	true	"Путь к изображению и limit"
//	@Success		200		{object}	ScoredImagesResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		502		{object}	ErrorResponse	"Сервис эмбеддингов или хранилище недоступны"
//	@Router			/search [post]
func (h *RecommendHandler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, r.URL.Path, err.Error())
		WriteError(w, err)
		return
	}

	results, err := h.recommendUsecase.SearchSimilar(r.Context(), usecase.NewSearchReq(req.Path, req.Limit))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, upstream(err))
		return
	}

	WriteSuccess(w, http.StatusOK, ScoredImagesResponse{Results: results})
}
