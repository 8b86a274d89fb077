package qdrant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/qdrant/go-client/qdrant"
)

type fakePoints struct {
	upserts   []*qdrant.UpsertPoints
	deletes   []*qdrant.DeletePoints
	upsertErr error
}

func (f *fakePoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, f.upsertErr
}

func (f *fakePoints) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deletes = append(f.deletes, req)
	return &qdrant.UpdateResult{}, nil
}

func TestPointID_IsDeterministic(t *testing.T) {
	if PointID("a.jpg") != PointID("a.jpg") {
		t.Error("PointID() differs for the same filename")
	}
	if PointID("a.jpg") == PointID("b.jpg") {
		t.Error("PointID() collides for different filenames")
	}
}

func TestPublishFeatures(t *testing.T) {
	vectors := make(map[string][]float32, upsertBatchSize+3)
	for i := 0; i < upsertBatchSize+3; i++ {
		vectors[fmt.Sprintf("%04d.jpg", i)] = []float32{float32(i), 1}
	}
	req := usecase.NewPublishFeaturesReq(domain.NewFeatureDatabase(vectors), "pooled")

	client := &fakePoints{}
	if err := NewEmbeddingRepo(client, "dataset").PublishFeatures(context.Background(), req); err != nil {
		t.Fatalf("PublishFeatures() error = %v", err)
	}

	if len(client.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2 batches", len(client.upserts))
	}
	total := 0
	for _, u := range client.upserts {
		if u.CollectionName != "dataset" {
			t.Errorf("collection = %q, want dataset", u.CollectionName)
		}
		total += len(u.Points)
	}
	if total != upsertBatchSize+3 {
		t.Errorf("points = %d, want %d", total, upsertBatchSize+3)
	}
	if len(client.deletes) != 1 {
		t.Errorf("deletes = %d, want 1", len(client.deletes))
	}
}

func TestPublishFeatures_UpsertErrorSkipsDelete(t *testing.T) {
	client := &fakePoints{upsertErr: errors.New("unavailable")}
	req := usecase.NewPublishFeaturesReq(domain.NewFeatureDatabase(map[string][]float32{"a.jpg": {1}}), "pooled")

	if err := NewEmbeddingRepo(client, "dataset").PublishFeatures(context.Background(), req); err == nil {
		t.Fatal("PublishFeatures() error = nil, want error")
	}
	if len(client.deletes) != 0 {
		t.Error("old points must not be deleted after a failed upsert")
	}
}
