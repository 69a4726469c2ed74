package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrEmptyVectors            = fmt.Errorf("empty vectors")
	ErrVectorEmbeddingEmpty    = fmt.Errorf("vector embedding is empty")
	ErrImageVectorMismatch     = fmt.Errorf("image vector mismatch")
	ErrVectorDimensionMismatch = fmt.Errorf("vector dimension does not match collection vector size")

	// Ошибки хранилищ
	ErrCollectionNotReady     = fmt.Errorf("collection is not ready")
	ErrLockNotAcquired        = fmt.Errorf("collection lock not acquired")
	ErrUnsupportedImageSource = fmt.Errorf("unsupported image source")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrMissingEnvVariable   = fmt.Errorf("missing required environment variable")

	// 400 Bad Request
	ErrStatusBadRequest  = fmt.Errorf("bad request")
	ErrNoImages          = fmt.Errorf("no images provided")
	ErrTooManyImages     = fmt.Errorf("too many images in one request")
	ErrInvalidLimit      = fmt.Errorf("limit must be positive")
	ErrPreferenceOverlap = fmt.Errorf("image id is both liked and disliked")
	ErrEmptyQueryPath    = fmt.Errorf("query image path is required")

	// 502 Bad Gateway
	ErrUpstreamFailure = fmt.Errorf("upstream service failure")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
