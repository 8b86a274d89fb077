package e

import "fmt"

var (
	// Ошибки уровня ядра (поиск похожих товаров)
	ErrNotFound   = fmt.Errorf("item not found")
	ErrExtraction          = fmt.Errorf("image feature extraction failed")
	ErrEmbedderUnavailable = fmt.Errorf("image embedder is unavailable")
	ErrEmptyIndex          = fmt.Errorf("index is empty")
	ErrLoad                = fmt.Errorf("failed to load dataset")

	// Внутренние ошибки с векторами
	ErrEmptyVector          = fmt.Errorf("empty vector")
	ErrVectorSizeMismatch   = fmt.Errorf("vector size mismatch")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrExpectedJSON         = fmt.Errorf("expected application/json body")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrNoImages             = fmt.Errorf("no image uploaded")
	ErrUnsupportedMediaType = fmt.Errorf("invalid file type")
	ErrFileTooLarge         = fmt.Errorf("file too large")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
