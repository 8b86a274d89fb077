package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/textindex"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

type fakeCatalogSource struct {
	loadFn func(ctx context.Context) (*domain.CatalogTable, error)
}

func (f *fakeCatalogSource) LoadCatalog(ctx context.Context) (*domain.CatalogTable, error) {
	return f.loadFn(ctx)
}

type recordingEvents struct {
	reqs []*CatalogLoadedReq
	err  error
}

func (r *recordingEvents) PublishCatalogLoaded(_ context.Context, req *CatalogLoadedReq) error {
	r.reqs = append(r.reqs, req)
	return r.err
}

func TestCatalogUseCase_Reload(t *testing.T) {
	table := domain.NewCatalogTable([]domain.CatalogRecord{
		{ID: "1", Title: "red shoe"},
		{ID: "2", Title: "red boot"},
	})
	source := &fakeCatalogSource{loadFn: func(context.Context) (*domain.CatalogTable, error) {
		return table, nil
	}}
	events := &recordingEvents{err: errors.New("kafka down")}
	similarity := newUC(nil, nil, nil)

	uc := NewCatalogUC(source, similarity, events, textindex.Options{}, logger.NewNop())
	req, err := uc.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if req.Records != 2 || req.Version == "" {
		t.Errorf("Reload() = %+v, want 2 records and a version", req)
	}
	if len(events.reqs) != 1 {
		t.Errorf("events = %d, want 1", len(events.reqs))
	}
	if !similarity.Ready() {
		t.Fatal("index was not published")
	}
	if _, err := similarity.RecommendByCatalogID(context.Background(), "1"); err != nil {
		t.Errorf("RecommendByCatalogID() error = %v", err)
	}
}

func TestCatalogUseCase_ReloadSourceError(t *testing.T) {
	source := &fakeCatalogSource{loadFn: func(context.Context) (*domain.CatalogTable, error) {
		return nil, errors.New("postgres down")
	}}
	similarity := newUC(nil, nil, nil)

	uc := NewCatalogUC(source, similarity, nil, textindex.Options{}, logger.NewNop())
	if _, err := uc.Reload(context.Background()); err == nil {
		t.Fatal("Reload() error = nil, want error")
	}
	if similarity.Ready() {
		t.Error("index must not be published after a failed reload")
	}
}

func TestCatalogUseCase_ConcurrentReloadsAreSerialized(t *testing.T) {
	older := domain.NewCatalogTable([]domain.CatalogRecord{{ID: "1", Title: "old shoe"}})
	newer := domain.NewCatalogTable([]domain.CatalogRecord{{ID: "1", Title: "new shoe"}, {ID: "2", Title: "new boot"}})

	var (
		calls    atomic.Int64
		inFlight atomic.Int64
		overlap  atomic.Bool
		started  = make(chan struct{})
		release  = make(chan struct{})
	)
	source := &fakeCatalogSource{loadFn: func(context.Context) (*domain.CatalogTable, error) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)

		if calls.Add(1) == 1 {
			close(started)
			<-release
			return older, nil
		}
		return newer, nil
	}}
	similarity := newUC(nil, nil, nil)
	uc := NewCatalogUC(source, similarity, nil, textindex.Options{}, logger.NewNop())

	var (
		wg       sync.WaitGroup
		newerReq *CatalogLoadedReq
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := uc.Reload(context.Background()); err != nil {
			t.Errorf("first Reload() error = %v", err)
		}
	}()
	<-started
	go func() {
		defer wg.Done()
		req, err := uc.Reload(context.Background())
		if err != nil {
			t.Errorf("second Reload() error = %v", err)
		}
		newerReq = req
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if overlap.Load() {
		t.Error("catalog loads overlapped")
	}
	if newerReq == nil || newerReq.Records != 2 {
		t.Fatalf("second Reload() = %+v, want 2 records", newerReq)
	}
	if got := similarity.Status().CatalogVersion; got != newerReq.Version {
		t.Errorf("published version = %s, want newer catalog %s", got, newerReq.Version)
	}
}
