package ml_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/embedder"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/jitter"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// VectorizeImageMethod: полный путь метода векторизации на ML-сервисе.
// Запрос: BytesValue с байтами изображения, ответ, Struct с полями vector и model_version.
const VectorizeImageMethod = "/ml.v1.MachineLearningService/VectorizeImage"

// MLService: удалённый извлекатель признаков, отправляет изображение в ML-сервис по gRPC.
type MLService struct {
	conn         grpc.ClientConnInterface
	dimensions   int
	modelVersion string
	maxRetries   int
	maxPixels    int
	backoff      jitter.Backoff
	callTimeout  time.Duration
	logger       logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, dimensions int, modelVersion string, maxRetries int, logger logger.Logger) *MLService {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &MLService{
		conn:         conn,
		dimensions:   dimensions,
		modelVersion: modelVersion,
		maxRetries:   maxRetries,
		maxPixels:    embedder.DefaultMaxPixels,
		backoff:      jitter.NewBackoff(time.Second, 30*time.Second),
		logger:       logger,
	}
}

// WithTimeout ограничивает длительность одного вызова. 0: без ограничения.
func (m *MLService) WithTimeout(d time.Duration) *MLService {
	m.callTimeout = d
	return m
}

// WithMaxPixels ограничивает размер изображений, отправляемых в сервис. 0: embedder.DefaultMaxPixels.
func (m *MLService) WithMaxPixels(n int) *MLService {
	if n <= 0 {
		n = embedder.DefaultMaxPixels
	}
	m.maxPixels = n
	return m
}

// WithBackoff переопределяет интервалы повторов.
func (m *MLService) WithBackoff(base, max time.Duration) *MLService {
	m.backoff = jitter.NewBackoff(base, max)
	return m
}

func (m *MLService) Dimensions() int {
	return m.dimensions
}

func (m *MLService) ModelVersion() string {
	return m.modelVersion
}

// Embed векторизует изображение с retry-логикой и экспоненциальной задержкой.
// Нераспознаваемое изображение отклоняется до обращения к сервису (e.ErrExtraction),
// недоступность сервиса после всех попыток даёт e.ErrEmbedderUnavailable.
func (m *MLService) Embed(ctx context.Context, data []byte) ([]float32, error) {
	const op = "MLService.Embed"

	if _, err := embedder.Decode(data, m.maxPixels); err != nil {
		return nil, e.Wrap(op, err)
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		vector, err := m.vectorize(ctx, data)
		if err == nil {
			return vector, nil
		}
		if ctx.Err() != nil {
			return nil, e.Wrap(op, ctx.Err())
		}
		if !retryable(err) {
			if errors.Is(err, e.ErrExtraction) {
				return nil, e.Wrap(op, err)
			}
			if status.Code(err) == codes.InvalidArgument {
				return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrExtraction, err))
			}
			return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEmbedderUnavailable, err))
		}
		lastErr = err

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := m.backoff.Delay(attempt)
		m.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("%w: all %d attempts failed: %w", e.ErrEmbedderUnavailable, m.maxRetries, lastErr))
}

// vectorize выполняет один вызов ML-сервиса и проверяет ответ.
func (m *MLService) vectorize(ctx context.Context, data []byte) ([]float32, error) {
	if m.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
	}

	res := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, VectorizeImageMethod, wrapperspb.Bytes(data), res); err != nil {
		return nil, err
	}

	raw := res.GetFields()["vector"].GetListValue().GetValues()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %w", e.ErrExtraction, e.ErrEmptyVector)
	}

	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v.GetNumberValue())
	}

	if m.dimensions > 0 && len(vector) != m.dimensions {
		return nil, fmt.Errorf("%w: %w: got %d, want %d", e.ErrExtraction, e.ErrVectorSizeMismatch, len(vector), m.dimensions)
	}

	if version := res.GetFields()["model_version"].GetStringValue(); version != "" && m.modelVersion != "" && version != m.modelVersion {
		m.logger.Warnf("ml-service answered with model %s, expected %s", version, m.modelVersion)
	}

	return vector, nil
}

// retryable: повторяем только транспортные и временные ошибки сервиса.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	default:
		return false
	}
}
