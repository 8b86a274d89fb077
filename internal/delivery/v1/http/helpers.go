package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/go-similarity/internal/catalog"
	"github.com/DRSN-tech/go-similarity/internal/infrastructure"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jimlawless/whereami"
)

// allowedUploadExtensions: расширения, принимаемые поиском по изображению.
var allowedUploadExtensions = []string{".png", ".jpg", ".jpeg"}

type ErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:  code,
		Error: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, e.ErrNotFound.Error()
	case errors.Is(err, e.ErrExtraction):
		return http.StatusUnprocessableEntity, e.ErrExtraction.Error()
	case errors.Is(err, e.ErrEmbedderUnavailable):
		return http.StatusServiceUnavailable, e.ErrEmbedderUnavailable.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrExpectedJSON):
		return http.StatusBadRequest, e.ErrExpectedJSON.Error()
	case errors.Is(err, e.ErrMissingFields):
		return http.StatusBadRequest, e.ErrMissingFields.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusBadRequest, e.ErrUnsupportedMediaType.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseRecommendRequest читает id товара из JSON-тела: поле "id" или "_id", строка или число.
func parseRecommendRequest(r *http.Request, maxSize int64) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return "", e.Wrap(whereami.WhereAmI(), e.ErrExpectedJSON)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxSize))
	dec.UseNumber()

	var req RecommendRequest
	if err := dec.Decode(&req); err != nil {
		return "", e.Wrap(whereami.WhereAmI(), e.ErrStatusBadRequest)
	}

	id := catalog.NormalizeID(req.ID)
	if id == "" {
		id = catalog.NormalizeID(req.MongoID)
	}
	if id == "" {
		return "", e.Wrap(whereami.WhereAmI(), e.ErrMissingFields)
	}

	return id, nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), e.ErrStatusBadRequest)
	}

	return nil
}

// parseImage достаёт единственный файл поля image и проверяет расширение и содержимое.
func parseImage(files []*multipart.FileHeader, maxSize int64) ([]byte, error) {
	if len(files) == 0 || files[0].Filename == "" {
		return nil, e.ErrNoImages
	}

	fh := files[0]
	if !infrastructure.HasAllowedExtension(fh.Filename, allowedUploadExtensions) {
		return nil, e.Wrap(fh.Filename, e.ErrUnsupportedMediaType)
	}

	data, mimeType, err := readFile(fh, maxSize)
	if err != nil {
		return nil, err
	}

	if _, err := infrastructure.GetExtensionFromMIME(mimeType); err != nil {
		return nil, e.Wrap(fh.Filename, err)
	}

	return data, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	if fh.Size > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}
	if len(data) == 0 {
		return nil, "", e.Wrap(fh.Filename, e.ErrNoImages)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}
