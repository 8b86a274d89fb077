package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	EventFeaturesRebuilt = "features.rebuilt"
	EventCatalogLoaded   = "catalog.loaded"
)

// MessageWriter: часть kafka.Writer, нужная продюсеру.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует события сервиса (перестроение базы векторов, загрузка каталога).
// Тело события: protobuf Struct, ключ сообщения, тип события.
type Producer struct {
	writer MessageWriter
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}

	return NewProducerWithWriter(writer, logger, cfg)
}

func NewProducerWithWriter(writer MessageWriter, logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// PublishFeatures отправляет событие features.rebuilt.
func (p *Producer) PublishFeatures(ctx context.Context, req *usecase.PublishFeaturesReq) error {
	return p.write(ctx, EventFeaturesRebuilt, map[string]any{
		"entries":       req.Database.Len(),
		"dimensions":    req.Database.Dimensions(),
		"model_version": req.ModelVersion,
		"rebuilt_at":    req.RebuiltAt.Format(time.RFC3339Nano),
	})
}

// PublishCatalogLoaded отправляет событие catalog.loaded.
func (p *Producer) PublishCatalogLoaded(ctx context.Context, req *usecase.CatalogLoadedReq) error {
	return p.write(ctx, EventCatalogLoaded, map[string]any{
		"version":         req.Version,
		"records":         req.Records,
		"vocabulary_size": req.VocabularySize,
		"loaded_at":       req.LoadedAt.Format(time.RFC3339Nano),
	})
}

func (p *Producer) write(ctx context.Context, eventType string, fields map[string]any) error {
	value, err := GetPayloadBytes(eventType, fields)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventType),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	p.logger.Debugf("kafka event %s sent", eventType)
	return nil
}

// EnsureTopic создаёт топик, если его ещё нет.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close(_ context.Context) error {
	return p.writer.Close()
}

// GetPayloadBytes собирает конверт события и сериализует его в protobuf.
func GetPayloadBytes(eventType string, fields map[string]any) ([]byte, error) {
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	event := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event_id":        structpb.NewStringValue(uuid.NewString()),
		"event_type":      structpb.NewStringValue(eventType),
		"event_timestamp": structpb.NewNumberValue(float64(time.Now().UnixNano())),
		"payload":         structpb.NewStructValue(payload),
	}}

	return proto.Marshal(event)
}
