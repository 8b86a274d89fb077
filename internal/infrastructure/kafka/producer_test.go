package kafka

import (
	"context"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func decodeEvent(t *testing.T, value []byte) *structpb.Struct {
	t.Helper()
	event := &structpb.Struct{}
	if err := proto.Unmarshal(value, event); err != nil {
		t.Fatalf("proto.Unmarshal() error = %v", err)
	}
	return event
}

func TestProducer_Events(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, logger.NewNop(), &cfg.KafkaCfg{Topic: "similarity-events"})
	ctx := context.Background()

	db := domain.NewFeatureDatabase(map[string][]float32{"a.jpg": {1, 2, 3}, "b.jpg": {3, 2, 1}})
	if err := p.PublishFeatures(ctx, usecase.NewPublishFeaturesReq(db, "pooled")); err != nil {
		t.Fatalf("PublishFeatures() error = %v", err)
	}
	if err := p.PublishCatalogLoaded(ctx, &usecase.CatalogLoadedReq{Version: "abc", Records: 10, VocabularySize: 40}); err != nil {
		t.Fatalf("PublishCatalogLoaded() error = %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.msgs))
	}

	tests := []struct {
		name      string
		msg       kafka.Message
		eventType string
		field     string
		want      float64
	}{
		{name: "features rebuilt", msg: w.msgs[0], eventType: EventFeaturesRebuilt, field: "entries", want: 2},
		{name: "catalog loaded", msg: w.msgs[1], eventType: EventCatalogLoaded, field: "records", want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.msg.Key) != tt.eventType {
				t.Errorf("Key = %q, want %q", tt.msg.Key, tt.eventType)
			}
			event := decodeEvent(t, tt.msg.Value)
			if got := event.Fields["event_type"].GetStringValue(); got != tt.eventType {
				t.Errorf("event_type = %q, want %q", got, tt.eventType)
			}
			if event.Fields["event_id"].GetStringValue() == "" {
				t.Error("event_id is empty")
			}
			payload := event.Fields["payload"].GetStructValue()
			if got := payload.Fields[tt.field].GetNumberValue(); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}
