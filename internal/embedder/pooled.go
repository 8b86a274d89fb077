package embedder

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/go-similarity/pkg/e"
)

const (
	DefaultInputSize = 224
	DefaultGrid      = 8
)

// Pooled: локальный детерминированный извлекатель признаков. После предобработки
// каждый канал усредняется по ячейкам сетки grid x grid. Размерность вектора 3*grid*grid.
// Не хранит состояния и безопасен для параллельного использования.
type Pooled struct {
	inputSize int
	grid      int
	mode      Normalization
	maxPixels int
}

// NewPooled создаёт локальный извлекатель. Нулевые параметры заменяются значениями по умолчанию.
func NewPooled(inputSize, grid int, mode Normalization) *Pooled {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	if grid <= 0 || grid > inputSize {
		grid = DefaultGrid
	}
	if mode == "" {
		mode = NormalizationCaffe
	}

	return &Pooled{inputSize: inputSize, grid: grid, mode: mode, maxPixels: DefaultMaxPixels}
}

// WithMaxPixels ограничивает размер принимаемых изображений. 0: DefaultMaxPixels.
func (p *Pooled) WithMaxPixels(n int) *Pooled {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	p.maxPixels = n
	return p
}

// Embed превращает байты изображения в вектор фиксированной длины.
func (p *Pooled) Embed(ctx context.Context, data []byte) ([]float32, error) {
	const op = "Pooled.Embed"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	t, err := Preprocess(data, p.inputSize, p.mode, p.maxPixels)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector := make([]float32, 0, p.Dimensions())
	for c := 0; c < 3; c++ {
		for gy := 0; gy < p.grid; gy++ {
			y0, y1 := cellBounds(gy, p.grid, t.Size)
			for gx := 0; gx < p.grid; gx++ {
				x0, x1 := cellBounds(gx, p.grid, t.Size)

				var sum float32
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						sum += t.At(c, x, y)
					}
				}
				vector = append(vector, sum/float32((y1-y0)*(x1-x0)))
			}
		}
	}

	if len(vector) != p.Dimensions() {
		return nil, e.Wrap(op, fmt.Errorf("%w: got %d values, want %d", e.ErrExtraction, len(vector), p.Dimensions()))
	}

	return vector, nil
}

func (p *Pooled) Dimensions() int {
	return 3 * p.grid * p.grid
}

func (p *Pooled) ModelVersion() string {
	return fmt.Sprintf("pooled-%s-%dx%d-g%d", p.mode, p.inputSize, p.inputSize, p.grid)
}

// cellBounds возвращает полуинтервал пикселей ячейки i из n на оси длины size.
func cellBounds(i, n, size int) (int, int) {
	return i * size / n, (i + 1) * size / n
}
