package minio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/jitter"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

type fakeDatasetRepo struct {
	mu       sync.Mutex
	objects  []usecase.DatasetObject
	content  map[string]string
	failures map[string]int
	calls    map[string]int
}

func (f *fakeDatasetRepo) List(context.Context) ([]usecase.DatasetObject, error) {
	return f.objects, nil
}

func (f *fakeDatasetRepo) Download(_ context.Context, key string, dst string) error {
	f.mu.Lock()
	f.calls[key]++
	calls := f.calls[key]
	f.mu.Unlock()

	if calls <= f.failures[key] {
		return errors.New("connection reset")
	}
	return os.WriteFile(dst, []byte(f.content[key]), 0o644)
}

func TestDatasetSync_Sync(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "same.jpg"), []byte("1234"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := &fakeDatasetRepo{
		objects: []usecase.DatasetObject{
			{Key: "dataset/new.jpg", Size: 3},
			{Key: "dataset/same.jpg", Size: 4},
			{Key: "dataset/flaky.png", Size: 2},
			{Key: "dataset/broken.jpg", Size: 1},
			{Key: "dataset/readme.txt", Size: 10},
		},
		content:  map[string]string{"dataset/new.jpg": "abc", "dataset/flaky.png": "ok", "dataset/broken.jpg": "x"},
		failures: map[string]int{"dataset/flaky.png": 1, "dataset/broken.jpg": 10},
		calls:    map[string]int{},
	}

	ds := NewDatasetSync(repo, dir, []string{".jpg", ".png"}, 2, logger.NewNop())
	ds.backoff = jitter.Backoff{Base: time.Millisecond}

	res, err := ds.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := SyncRes{Listed: 5, Downloaded: 2, Skipped: 2, Failed: 1}
	if *res != want {
		t.Errorf("Sync() = %+v, want %+v", *res, want)
	}
	if repo.calls["dataset/same.jpg"] != 0 {
		t.Error("unchanged file was downloaded again")
	}
	if repo.calls["dataset/broken.jpg"] != 3 {
		t.Errorf("broken.jpg attempts = %d, want 3", repo.calls["dataset/broken.jpg"])
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "new.jpg")); string(data) != "abc" {
		t.Errorf("new.jpg = %q, want abc", data)
	}
}

func TestDatasetSync_DuplicateFileNames(t *testing.T) {
	dir := t.TempDir()
	repo := &fakeDatasetRepo{
		objects: []usecase.DatasetObject{
			{Key: "dataset/men/shoe.jpg", Size: 3},
			{Key: "dataset/women/shoe.jpg", Size: 5},
		},
		content: map[string]string{"dataset/men/shoe.jpg": "men", "dataset/women/shoe.jpg": "women"},
		calls:   map[string]int{},
	}

	ds := NewDatasetSync(repo, dir, []string{".jpg"}, 2, logger.NewNop())
	res, err := ds.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := SyncRes{Listed: 2, Downloaded: 1, Skipped: 1}
	if *res != want {
		t.Errorf("Sync() = %+v, want %+v", *res, want)
	}
	if repo.calls["dataset/women/shoe.jpg"] != 0 {
		t.Error("second object with the same file name was downloaded")
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "shoe.jpg")); string(data) != "men" {
		t.Errorf("shoe.jpg = %q, want men", data)
	}
}
