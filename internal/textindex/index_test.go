package textindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
)

func newTable(records ...domain.CatalogRecord) *domain.CatalogTable {
	return domain.NewCatalogTable(records)
}

func shoeCatalog() *domain.CatalogTable {
	return newTable(
		domain.CatalogRecord{ID: "1", Title: "red shoe", Brand: "Nike"},
		domain.CatalogRecord{ID: "2", Title: "red shoe", Brand: "Nike"},
		domain.CatalogRecord{ID: "3", Title: "blue hat", Brand: "Adidas"},
	)
}

func largerCatalog() *domain.CatalogTable {
	titles := []string{
		"red running shoe", "blue running shoe", "red leather jacket", "black leather boots",
		"wool winter hat", "cotton summer hat", "red cotton shirt", "blue denim jeans",
		"black denim jacket", "running socks",
	}
	brands := []string{"Nike", "Adidas", "Puma"}

	records := make([]domain.CatalogRecord, 0, len(titles))
	for i, title := range titles {
		records = append(records, domain.CatalogRecord{
			ID:       fmt.Sprintf("p%d", i),
			Title:    title,
			Brand:    brands[i%len(brands)],
			Category: "apparel",
		})
	}
	return newTable(records...)
}

func mustBuild(t *testing.T, table *domain.CatalogTable) *Index {
	t.Helper()
	idx, err := Build(context.Background(), table, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Red-Shoe, by NIKE x 2024!", EnglishStopWords())
	want := []string{"red", "shoe", "nike", "2024"}

	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuild_MatrixIsSymmetricWithUnitDiagonal(t *testing.T) {
	idx := mustBuild(t, largerCatalog())

	for i := 0; i < idx.Len(); i++ {
		if idx.Similarity(i, i) != 1.0 {
			t.Errorf("Similarity(%d, %d) = %f, want 1.0", i, i, idx.Similarity(i, i))
		}
		for j := 0; j < idx.Len(); j++ {
			if idx.Similarity(i, j) != idx.Similarity(j, i) {
				t.Errorf("Similarity(%d, %d) = %f, Similarity(%d, %d) = %f", i, j, idx.Similarity(i, j), j, i, idx.Similarity(j, i))
			}
			if s := idx.Similarity(i, j); s < 0 || s > 1+1e-9 {
				t.Errorf("Similarity(%d, %d) = %f out of [0, 1]", i, j, s)
			}
		}
	}
}

func TestBuild_VectorsAreNormalized(t *testing.T) {
	idx := mustBuild(t, largerCatalog())

	for i := 0; i < idx.Len(); i++ {
		v := idx.Vector(i)
		var norm float64
		for k, term := range v.Terms {
			if term >= idx.VocabularySize() {
				t.Fatalf("term %d outside vocabulary of size %d", term, idx.VocabularySize())
			}
			norm += v.Weights[k] * v.Weights[k]
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("row %d norm^2 = %f, want 1", i, norm)
		}
	}
}

func TestTopK_NearDuplicateRanksFirst(t *testing.T) {
	idx := mustBuild(t, shoeCatalog())

	got, err := idx.TopK("1", 5, true)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(TopK()) = %d, want 2", len(got))
	}
	if got[0].Record.ID != "2" || got[1].Record.ID != "3" {
		t.Errorf("TopK() order = [%s %s], want [2 3]", got[0].Record.ID, got[1].Record.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("score of 2 (%f) must exceed score of 3 (%f)", got[0].Score, got[1].Score)
	}
}

func TestTopK_Properties(t *testing.T) {
	table := largerCatalog()
	idx := mustBuild(t, table)

	for i := 0; i < table.Len(); i++ {
		id := table.At(i).ID
		got, err := idx.TopK(id, 5, true)
		if err != nil {
			t.Fatalf("TopK(%s) error = %v", id, err)
		}
		if len(got) > 5 {
			t.Errorf("TopK(%s) returned %d results, want <= 5", id, len(got))
		}
		for k, r := range got {
			if r.Record.ID == id {
				t.Errorf("TopK(%s) contains the query item", id)
			}
			if k > 0 && r.Score > got[k-1].Score {
				t.Errorf("TopK(%s) scores increase at %d: %f > %f", id, k, r.Score, got[k-1].Score)
			}
		}
	}
}

func TestTopK_ExcludesSelfAmongExactDuplicates(t *testing.T) {
	idx := mustBuild(t, shoeCatalog())

	got, err := idx.TopK("2", 5, true)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	for _, r := range got {
		if r.Record.ID == "2" {
			t.Fatal("TopK(2) contains the query item")
		}
	}
	if got[0].Record.ID != "1" {
		t.Errorf("TopK(2)[0] = %s, want 1", got[0].Record.ID)
	}
}

func TestTopK_TiesKeepCatalogOrder(t *testing.T) {
	idx := mustBuild(t, newTable(
		domain.CatalogRecord{ID: "q", Title: "lamp"},
		domain.CatalogRecord{ID: "b", Title: "chair"},
		domain.CatalogRecord{ID: "a", Title: "table"},
		domain.CatalogRecord{ID: "c", Title: "sofa"},
	))

	got, err := idx.TopK("q", 3, true)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}

	want := []string{"b", "a", "c"}
	for i, id := range want {
		if got[i].Record.ID != id {
			t.Errorf("TopK()[%d] = %s, want %s", i, got[i].Record.ID, id)
		}
	}
}

func TestTopK_IncludeSelf(t *testing.T) {
	idx := mustBuild(t, shoeCatalog())

	got, err := idx.TopK("3", 1, false)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(got) != 1 || got[0].Record.ID != "3" || got[0].Score != 1.0 {
		t.Errorf("TopK(3, 1, false) = %+v, want self with score 1.0", got)
	}
}

func TestTopK_NotFound(t *testing.T) {
	tests := []struct {
		name  string
		table *domain.CatalogTable
		id    string
	}{
		{name: "unknown id", table: shoeCatalog(), id: "missing"},
		{name: "empty catalog", table: domain.EmptyCatalogTable(), id: "1"},
		{name: "only stop words", table: newTable(domain.CatalogRecord{ID: "1", Title: "the and of"}), id: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := mustBuild(t, tt.table)
			_, err := idx.TopK(tt.id, 5, true)
			if !errors.Is(err, e.ErrNotFound) {
				t.Errorf("TopK() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Build(ctx, largerCatalog(), Options{Workers: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}
