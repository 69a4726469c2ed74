package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const maxRequestBody = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку со статусом. Ошибки валидации проверяются раньше ошибок хранилищ.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrInvalidLimit):
		return http.StatusBadRequest, e.ErrInvalidLimit.Error()
	case errors.Is(err, e.ErrPreferenceOverlap):
		return http.StatusBadRequest, e.ErrPreferenceOverlap.Error()
	case errors.Is(err, e.ErrEmptyQueryPath):
		return http.StatusBadRequest, e.ErrEmptyQueryPath.Error()
	case errors.Is(err, e.ErrUnsupportedImageSource):
		return http.StatusBadRequest, e.ErrUnsupportedImageSource.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, e.ErrLockNotAcquired):
		return http.StatusConflict, e.ErrLockNotAcquired.Error()
	case errors.Is(err, e.ErrUpstreamFailure):
		return http.StatusBadGateway, e.ErrUpstreamFailure.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

// upstream помечает ошибку use case как сбой внешнего сервиса, если это не ошибка запроса.
func upstream(err error) error {
	return fmt.Errorf("%w: %w", e.ErrUpstreamFailure, err)
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", e.ErrStatusBadRequest, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", e.ErrStatusBadRequest, err)
	}

	return nil
}

// queryInt читает положительный целочисленный параметр запроса или возвращает def.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, e.Wrap(key, e.ErrInvalidLimit)
	}
	return v, nil
}
