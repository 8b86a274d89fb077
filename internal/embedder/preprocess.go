// Package embedder содержит предобработку изображений и локальный извлекатель признаков.
// Удалённый извлекатель (ML-сервис по gRPC) находится в internal/infrastructure/ml-service.
package embedder

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Normalization: способ нормализации каналов, которого ожидает модель.
type Normalization string

const (
	// NormalizationCaffe: BGR, вычитание среднего ImageNet без деления (VGG16, ResNet50).
	NormalizationCaffe Normalization = "caffe"
	// NormalizationTorch: RGB в [0,1], вычитание среднего и деление на std ImageNet.
	NormalizationTorch Normalization = "torch"
)

var (
	caffeMeanBGR = [3]float32{103.939, 116.779, 123.68}
	torchMeanRGB = [3]float32{0.485, 0.456, 0.406}
	torchStdRGB  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor: изображение после предобработки в формате каналы x высота x ширина.
type Tensor struct {
	Size int
	Data [3][]float32 // каждый канал: Size*Size значений построчно
}

// At возвращает значение канала c в точке (x, y).
func (t *Tensor) At(c, x, y int) float32 {
	return t.Data[c][y*t.Size+x]
}

// DefaultMaxPixels: предел числа пикселей по умолчанию (около 6300x6300).
const DefaultMaxPixels = 40_000_000

// Decode проверяет и декодирует байты изображения. Размеры читаются из заголовка до
// декодирования, изображение больше maxPixels пикселей отклоняется (0: DefaultMaxPixels).
func Decode(data []byte, maxPixels int) (image.Image, error) {
	const op = "embedder.Decode"

	if len(data) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: empty image", e.ErrExtraction))
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrExtraction, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: image has zero size", e.ErrExtraction))
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, e.Wrap(op, fmt.Errorf("%w: image is %dx%d, limit is %d pixels",
			e.ErrExtraction, cfg.Width, cfg.Height, maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrExtraction, err))
	}

	return img, nil
}

// Preprocess декодирует изображение, приводит его к size x size и нормализует каналы.
func Preprocess(data []byte, size int, mode Normalization, maxPixels int) (*Tensor, error) {
	const op = "embedder.Preprocess"

	if size <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: invalid input size %d", e.ErrExtraction, size))
	}

	img, err := Decode(data, maxPixels)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: image has zero size", e.ErrExtraction))
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	t := &Tensor{Size: size}
	for c := range t.Data {
		t.Data[c] = make([]float32, size*size)
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			rgb := [3]float32{
				float32(dst.Pix[off]),
				float32(dst.Pix[off+1]),
				float32(dst.Pix[off+2]),
			}
			i := y*size + x

			switch mode {
			case NormalizationTorch:
				for c := 0; c < 3; c++ {
					t.Data[c][i] = (rgb[c]/255 - torchMeanRGB[c]) / torchStdRGB[c]
				}
			default:
				// каналы в порядке BGR
				for c := 0; c < 3; c++ {
					t.Data[c][i] = rgb[2-c] - caffeMeanBGR[c]
				}
			}
		}
	}

	return t, nil
}
