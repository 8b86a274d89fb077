// Package catalog загружает сырые записи каталога и нормализует их в domain.CatalogTable.
// Ошибки загрузки не пробрасываются наверх: вместо них возвращается пустая таблица, а ошибка логируется.
package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// Load нормализует сырые записи каталога. Записи без id пропускаются.
func Load(raw []map[string]any, log logger.Logger) *domain.CatalogTable {
	records := make([]domain.CatalogRecord, 0, len(raw))
	for i, item := range raw {
		record, ok := normalizeRecord(item)
		if !ok {
			log.Warnf("catalog record %d has no id, skipping", i)
			continue
		}
		records = append(records, record)
	}

	table := domain.NewCatalogTable(records)
	if dup := len(records) - table.Len(); dup > 0 {
		log.Warnf("catalog contains %d duplicate ids, last record wins", dup)
	}

	return table
}

// LoadFile читает JSON-массив записей из файла. При любой ошибке возвращает пустую таблицу.
func LoadFile(path string, log logger.Logger) *domain.CatalogTable {
	const op = "catalog.LoadFile"

	f, err := os.Open(path)
	if err != nil {
		log.Errorf(e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err)), "failed to load text dataset %s", path)
		return domain.EmptyCatalogTable()
	}
	defer f.Close()

	return LoadReader(f, log)
}

// LoadReader читает JSON-массив записей из потока. При любой ошибке возвращает пустую таблицу.
func LoadReader(r io.Reader, log logger.Logger) *domain.CatalogTable {
	const op = "catalog.LoadReader"

	raw, err := Decode(r)
	if err != nil {
		log.Errorf(e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err)), "failed to parse text dataset")
		return domain.EmptyCatalogTable()
	}

	return Load(raw, log)
}

// Decode разбирает JSON-массив объектов, сохраняя числа как json.Number.
func Decode(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// DecodeRecord разбирает один JSON-объект записи.
func DecodeRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// Fingerprint возвращает версию каталога: хэш всех полей, попадающих в индекс или в ответ.
func Fingerprint(table *domain.CatalogTable) string {
	h := sha256.New()
	for i := 0; i < table.Len(); i++ {
		r := table.At(i)
		fields := []string{r.ID, r.Text(), r.FirstImageURL(), "", ""}
		if r.Price != nil {
			fields[3] = r.Price.String()
		}
		if r.Ratings != nil {
			fields[4] = fmt.Sprint(*r.Ratings)
		}
		for _, f := range fields {
			io.WriteString(h, f)
			h.Write([]byte{0})
		}
	}

	return hex.EncodeToString(h.Sum(nil))[:16]
}

func normalizeRecord(raw map[string]any) (domain.CatalogRecord, bool) {
	rawID, ok := raw["_id"]
	if !ok {
		rawID = raw["id"]
	}

	id := NormalizeID(rawID)
	if id == "" {
		return domain.CatalogRecord{}, false
	}

	urls, ok := raw["imageURL"]
	if !ok {
		urls = raw["imageURLs"]
	}

	return domain.CatalogRecord{
		ID:        id,
		Title:     textField(raw, "title"),
		Brand:     textField(raw, "brand"),
		Category:  textField(raw, "category"),
		Price:     parsePrice(raw["price"]),
		Ratings:   parseRatings(raw["ratings"]),
		ImageURLs: imageURLs(urls),
	}, true
}

// FileSource читает каталог из JSON-файла при каждом вызове LoadCatalog.
type FileSource struct {
	path   string
	logger logger.Logger
}

func NewFileSource(path string, logger logger.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// LoadCatalog никогда не возвращает ошибку: нечитаемый файл даёт пустой каталог.
func (s *FileSource) LoadCatalog(_ context.Context) (*domain.CatalogTable, error) {
	return LoadFile(s.path, s.logger), nil
}
