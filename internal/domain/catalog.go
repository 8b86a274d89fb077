package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogRecord описывает товар каталога после нормализации.
type CatalogRecord struct {
	ID        string
	Title     string
	Brand     string
	Category  string
	Price     *decimal.Decimal // nil, если цена не указана
	Ratings   *float64         // nil, если рейтинг не указан
	ImageURLs []string
}

// Text возвращает текст товара для векторизации: title, brand и category через пробел.
func (r *CatalogRecord) Text() string {
	return strings.Join([]string{r.Title, r.Brand, r.Category}, " ")
}

// FirstImageURL возвращает первую ссылку на изображение или пустую строку.
func (r *CatalogRecord) FirstImageURL() string {
	if len(r.ImageURLs) == 0 {
		return ""
	}
	return r.ImageURLs[0]
}

// CatalogTable: упорядоченный неизменяемый набор товаров с индексом id -> номер строки.
type CatalogTable struct {
	records []CatalogRecord
	index   map[string]int
}

// NewCatalogTable строит таблицу из записей. При повторяющемся id побеждает последняя запись,
// которая занимает позицию первой.
func NewCatalogTable(records []CatalogRecord) *CatalogTable {
	t := &CatalogTable{
		records: make([]CatalogRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}

	for _, r := range records {
		if i, ok := t.index[r.ID]; ok {
			t.records[i] = r
			continue
		}
		t.index[r.ID] = len(t.records)
		t.records = append(t.records, r)
	}

	return t
}

// EmptyCatalogTable возвращает пустую таблицу.
func EmptyCatalogTable() *CatalogTable {
	return NewCatalogTable(nil)
}

func (t *CatalogTable) Len() int {
	return len(t.records)
}

// At возвращает запись по номеру строки.
func (t *CatalogTable) At(i int) *CatalogRecord {
	return &t.records[i]
}

// IndexOf возвращает номер строки товара по id.
func (t *CatalogTable) IndexOf(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

