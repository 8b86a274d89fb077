package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/textindex"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

type fakeEmbedder struct {
	embedFn func(ctx context.Context, data []byte) ([]float32, error)
	dims    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, data []byte) ([]float32, error) {
	return f.embedFn(ctx, data)
}
func (f *fakeEmbedder) Dimensions() int      { return f.dims }
func (f *fakeEmbedder) ModelVersion() string { return "fake" }

type staticFeatures struct {
	db *domain.FeatureDatabase
}

func (s *staticFeatures) Current() *domain.FeatureDatabase { return s.db }

type memoryCache struct {
	items  map[string]*RecommendRes
	getErr error
	gets   int
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]*RecommendRes{}}
}

func (c *memoryCache) GetRecommendations(_ context.Context, version, id string) (*RecommendRes, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	res, ok := c.items[version+":"+id]
	return res, ok, nil
}

func (c *memoryCache) SetRecommendations(_ context.Context, version, id string, res *RecommendRes) error {
	c.sets++
	c.items[version+":"+id] = res
	return nil
}

func constEmbedder(v []float32) *fakeEmbedder {
	return &fakeEmbedder{
		dims: len(v),
		embedFn: func(context.Context, []byte) ([]float32, error) {
			return v, nil
		},
	}
}

func shoeIndex(t *testing.T) *textindex.Index {
	t.Helper()
	idx, err := textindex.Build(context.Background(), domain.NewCatalogTable([]domain.CatalogRecord{
		{ID: "1", Title: "red shoe", Brand: "Nike", ImageURLs: []string{"http://img/1.jpg", "http://img/1b.jpg"}},
		{ID: "2", Title: "red shoe", Brand: "Nike", ImageURLs: []string{"http://img/2.jpg"}},
		{ID: "3", Title: "blue hat", Brand: "Adidas"},
	}), textindex.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func newUC(features *domain.FeatureDatabase, emb *fakeEmbedder, cache RecommendationCache) *SimilarityUseCase {
	if features == nil {
		features = domain.EmptyFeatureDatabase()
	}
	if emb == nil {
		emb = constEmbedder([]float32{1, 0})
	}
	return NewSimilarityUC(&staticFeatures{db: features}, emb, cache, "/static/dataset_images/", logger.NewNop())
}

func TestRecommendByCatalogID(t *testing.T) {
	uc := newUC(nil, nil, nil)
	uc.Publish(shoeIndex(t), "v1")

	res, err := uc.RecommendByCatalogID(context.Background(), "1")
	if err != nil {
		t.Fatalf("RecommendByCatalogID() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(res.Items))
	}
	if res.Items[0].ID != "2" || res.Items[1].ID != "3" {
		t.Errorf("order = [%s %s], want [2 3]", res.Items[0].ID, res.Items[1].ID)
	}
	if res.Items[0].Image != "http://img/2.jpg" {
		t.Errorf("Image = %q, want first image url", res.Items[0].Image)
	}
	if res.Items[0].Similarity != 1.0 {
		t.Errorf("Similarity = %f, want 1.0 for exact duplicate", res.Items[0].Similarity)
	}
	if res.Items[1].Image != "" {
		t.Errorf("Image = %q, want empty for record without images", res.Items[1].Image)
	}
}

func TestRecommendByCatalogID_Errors(t *testing.T) {
	tests := []struct {
		name    string
		publish bool
		id      string
		wantErr error
	}{
		{name: "not published", publish: false, id: "1", wantErr: e.ErrEmptyIndex},
		{name: "unknown id", publish: true, id: "404", wantErr: e.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := newUC(nil, nil, nil)
			if tt.publish {
				uc.Publish(shoeIndex(t), "v1")
			}

			if _, err := uc.RecommendByCatalogID(context.Background(), tt.id); !errors.Is(err, tt.wantErr) {
				t.Errorf("RecommendByCatalogID() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecommendByCatalogID_UsesCache(t *testing.T) {
	cache := newMemoryCache()
	uc := newUC(nil, nil, cache)
	uc.Publish(shoeIndex(t), "v1")

	first, err := uc.RecommendByCatalogID(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := uc.RecommendByCatalogID(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}

	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
	if second != first {
		t.Error("second call did not return the cached result")
	}

	uc.Publish(shoeIndex(t), "v2")
	if _, err := uc.RecommendByCatalogID(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 2 {
		t.Errorf("cache sets = %d after republish, want 2", cache.sets)
	}
}

func TestRecommendByCatalogID_CacheFailureFallsBack(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	uc := newUC(nil, nil, cache)
	uc.Publish(shoeIndex(t), "v1")

	res, err := uc.RecommendByCatalogID(context.Background(), "3")
	if err != nil {
		t.Fatalf("RecommendByCatalogID() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(res.Items))
	}
}

func TestSearchByImage(t *testing.T) {
	db := domain.NewFeatureDatabase(map[string][]float32{
		"a.jpg": {1, 0},
		"b.jpg": {0, 1},
		"c.jpg": {1, 1},
		"d.jpg": {-1, 0},
		"e.jpg": {2, 0.1},
	})
	uc := newUC(db, constEmbedder([]float32{1, 0}), nil)

	res, err := uc.SearchByImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("SearchByImage() error = %v", err)
	}
	if len(res.Matches) != 5 {
		t.Fatalf("len(Matches) = %d, want 5", len(res.Matches))
	}

	want := []string{"a.jpg", "e.jpg", "c.jpg", "b.jpg", "d.jpg"}
	for i, name := range want {
		if res.Matches[i].Filename != name {
			t.Errorf("Matches[%d] = %s, want %s", i, res.Matches[i].Filename, name)
		}
		if i > 0 && res.Matches[i].Score > res.Matches[i-1].Score {
			t.Errorf("scores increase at %d", i)
		}
	}
	if res.Matches[0].URL != "/static/dataset_images/a.jpg" {
		t.Errorf("URL = %q", res.Matches[0].URL)
	}
	if res.Matches[2].Score != 0.707 {
		t.Errorf("Score = %f, want 0.707", res.Matches[2].Score)
	}
}

func TestSearchByImage_CapsAtFive(t *testing.T) {
	vectors := map[string][]float32{}
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg"} {
		vectors[name] = []float32{1, 1}
	}
	uc := newUC(domain.NewFeatureDatabase(vectors), constEmbedder([]float32{1, 1}), nil)

	res, err := uc.SearchByImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 5 {
		t.Fatalf("len(Matches) = %d, want 5", len(res.Matches))
	}
	if res.Matches[0].Filename != "1.jpg" || res.Matches[4].Filename != "5.jpg" {
		t.Errorf("ties must keep filename order, got %s..%s", res.Matches[0].Filename, res.Matches[4].Filename)
	}
}

func TestSearchByImage_Errors(t *testing.T) {
	db := domain.NewFeatureDatabase(map[string][]float32{"a.jpg": {1, 0}})

	tests := []struct {
		name    string
		db      *domain.FeatureDatabase
		emb     *fakeEmbedder
		wantErr error
	}{
		{name: "empty database", db: domain.EmptyFeatureDatabase(), emb: constEmbedder([]float32{1, 0}), wantErr: e.ErrEmptyIndex},
		{
			name: "extraction failure",
			db:   db,
			emb: &fakeEmbedder{embedFn: func(context.Context, []byte) ([]float32, error) {
				return nil, e.ErrExtraction
			}},
			wantErr: e.ErrExtraction,
		},
		{
			name: "embedder outage",
			db:   db,
			emb: &fakeEmbedder{embedFn: func(context.Context, []byte) ([]float32, error) {
				return nil, e.Wrap("MLService.Embed", e.ErrEmbedderUnavailable)
			}},
			wantErr: e.ErrEmbedderUnavailable,
		},
		{name: "dimension mismatch", db: db, emb: constEmbedder([]float32{1, 0, 0}), wantErr: e.ErrVectorSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := newUC(tt.db, tt.emb, nil)
			if _, err := uc.SearchByImage(context.Background(), []byte("img")); !errors.Is(err, tt.wantErr) {
				t.Errorf("SearchByImage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchByImage_OutageIsNotExtraction(t *testing.T) {
	db := domain.NewFeatureDatabase(map[string][]float32{"a.jpg": {1, 0}})
	uc := newUC(db, &fakeEmbedder{embedFn: func(context.Context, []byte) ([]float32, error) {
		return nil, errors.New("connection refused")
	}}, nil)

	if _, err := uc.SearchByImage(context.Background(), []byte("img")); errors.Is(err, e.ErrExtraction) {
		t.Errorf("SearchByImage() error = %v, must not be reported as ErrExtraction", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	db := domain.NewFeatureDatabase(map[string][]float32{"a.jpg": {1, 0}})
	uc := newUC(db, nil, nil)

	if s := uc.Status(); s.Ready || s.FeatureCount != 1 {
		t.Errorf("Status() = %+v, want not ready with 1 feature", s)
	}

	uc.Publish(shoeIndex(t), "v1")
	s := uc.Status()
	if !s.Ready || s.CatalogSize != 3 || s.CatalogVersion != "v1" || s.VocabularySize == 0 {
		t.Errorf("Status() = %+v, want ready with 3 records", s)
	}
}
