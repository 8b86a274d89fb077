// Package textindex строит TF-IDF пространство по текстам каталога и плотную матрицу
// косинусной близости всех пар товаров.
package textindex

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// Options задаёт параметры построения индекса.
type Options struct {
	StopWords map[string]struct{} // nil: английский список по умолчанию
	Workers   int                 // число горутин для построения матрицы, 0: GOMAXPROCS
}

// SparseVector: разреженный вектор весов, отсортированный по номеру термина.
type SparseVector struct {
	Terms   []int
	Weights []float64
}

// Index: неизменяемый текстовый индекс (словарь, TF-IDF векторы и матрица близости).
type Index struct {
	table      *domain.CatalogTable
	vocabulary map[string]int
	vectors    []SparseVector
	matrix     []float64 // n*n, построчно
	n          int
}

// Empty возвращает пустой индекс: любой запрос к нему завершается e.ErrNotFound.
func Empty() *Index {
	return &Index{table: domain.EmptyCatalogTable(), vocabulary: map[string]int{}}
}

// Build строит индекс по таблице каталога. Пустая таблица или пустой словарь дают пустой индекс.
// Ошибка возвращается только при отмене контекста.
func Build(ctx context.Context, table *domain.CatalogTable, opts Options) (*Index, error) {
	if table == nil || table.Len() == 0 {
		return Empty(), nil
	}

	stopWords := opts.StopWords
	if stopWords == nil {
		stopWords = EnglishStopWords()
	}

	n := table.Len()
	docs := make([][]string, n)
	for i := 0; i < n; i++ {
		docs[i] = Tokenize(table.At(i).Text(), stopWords)
	}

	vocabulary := buildVocabulary(docs)
	if len(vocabulary) == 0 {
		return Empty(), nil
	}

	idf := inverseDocumentFrequency(docs, vocabulary)
	vectors := make([]SparseVector, n)
	for i, doc := range docs {
		vectors[i] = weigh(doc, vocabulary, idf)
	}

	matrix, err := buildMatrix(ctx, vectors, opts.Workers)
	if err != nil {
		return nil, e.Wrap("textindex.Build", err)
	}

	return &Index{
		table:      table,
		vocabulary: vocabulary,
		vectors:    vectors,
		matrix:     matrix,
		n:          n,
	}, nil
}

// Len возвращает число проиндексированных товаров.
func (x *Index) Len() int {
	return x.n
}

// VocabularySize возвращает размер словаря (размерность векторов).
func (x *Index) VocabularySize() int {
	return len(x.vocabulary)
}

// Table возвращает таблицу каталога, по которой построен индекс.
func (x *Index) Table() *domain.CatalogTable {
	return x.table
}

// Vector возвращает TF-IDF вектор товара по номеру строки.
func (x *Index) Vector(i int) SparseVector {
	return x.vectors[i]
}

// Similarity возвращает косинусную близость товаров i и j.
func (x *Index) Similarity(i, j int) float64 {
	return x.matrix[i*x.n+j]
}

// TopK возвращает до k товаров, наиболее похожих на товар id, по убыванию оценки.
// При равных оценках порядок совпадает с порядком каталога. При excludeSelf сам товар
// исключается по номеру строки, поэтому в выдаче его нет даже при наличии полных дублей.
func (x *Index) TopK(id string, k int, excludeSelf bool) ([]domain.ScoredRecord, error) {
	const op = "Index.TopK"

	if x.n == 0 {
		return nil, e.Wrap(op, e.ErrNotFound)
	}

	self, ok := x.table.IndexOf(id)
	if !ok {
		return nil, e.Wrap(op, e.ErrNotFound)
	}

	row := x.matrix[self*x.n : (self+1)*x.n]
	order := make([]int, 0, x.n)
	for j := 0; j < x.n; j++ {
		if excludeSelf && j == self {
			continue
		}
		order = append(order, j)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return row[order[a]] > row[order[b]]
	})

	if k < 0 {
		k = 0
	}
	if k > len(order) {
		k = len(order)
	}

	result := make([]domain.ScoredRecord, 0, k)
	for _, j := range order[:k] {
		result = append(result, domain.ScoredRecord{
			Record: *x.table.At(j),
			Score:  row[j],
		})
	}

	return result, nil
}

// buildVocabulary присваивает терминам номера в алфавитном порядке.
func buildVocabulary(docs [][]string) map[string]int {
	terms := make(map[string]struct{})
	for _, doc := range docs {
		for _, t := range doc {
			terms[t] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(terms))
	for t := range terms {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	vocabulary := make(map[string]int, len(sorted))
	for i, t := range sorted {
		vocabulary[t] = i
	}

	return vocabulary
}

// inverseDocumentFrequency считает сглаженный idf = ln((1+n)/(1+df)) + 1.
func inverseDocumentFrequency(docs [][]string, vocabulary map[string]int) []float64 {
	df := make([]int, len(vocabulary))
	for _, doc := range docs {
		seen := make(map[int]struct{}, len(doc))
		for _, t := range doc {
			idx := vocabulary[t]
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			df[idx]++
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(df))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}

	return idf
}

// weigh строит L2-нормированный TF-IDF вектор документа.
func weigh(doc []string, vocabulary map[string]int, idf []float64) SparseVector {
	counts := make(map[int]int, len(doc))
	for _, t := range doc {
		counts[vocabulary[t]]++
	}

	v := SparseVector{
		Terms:   make([]int, 0, len(counts)),
		Weights: make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.Terms = append(v.Terms, idx)
	}
	sort.Ints(v.Terms)

	var norm float64
	for _, idx := range v.Terms {
		w := float64(counts[idx]) * idf[idx]
		v.Weights = append(v.Weights, w)
		norm += w * w
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v.Weights {
			v.Weights[i] /= norm
		}
	}

	return v
}

// dot: скалярное произведение разреженных векторов слиянием по номерам терминов.
func dot(a, b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Terms) && j < len(b.Terms) {
		switch {
		case a.Terms[i] == b.Terms[j]:
			sum += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Terms[i] < b.Terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// buildMatrix считает верхний треугольник матрицы параллельно и отражает его.
// Каждую пару (i, j) пишет ровно одна горутина: та, что обрабатывает строку min(i, j).
func buildMatrix(ctx context.Context, vectors []SparseVector, workers int) ([]float64, error) {
	n := len(vectors)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	matrix := make([]float64, n*n)
	rows := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				matrix[i*n+i] = 1.0
				for j := i + 1; j < n; j++ {
					s := dot(vectors[i], vectors[j])
					matrix[i*n+j] = s
					matrix[j*n+i] = s
				}
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case rows <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(rows)
	wg.Wait()

	if err != nil {
		return nil, err
	}

	return matrix, nil
}
