package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"nest/internal/config"
	"nest/internal/constants"
	"nest/internal/logger"
	"nest/pkg/metrics"
	"nest/pkg/models"
	"nest/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per notice, keyed by bin id so notices of
// a bin stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.Topic, log)
}

func newKafkaPublisher(w messageWriter, topic string, log logger.Logger) *KafkaPublisher {
	if topic == "" {
		topic = constants.DefaultNoticeTopic
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: log}
}

func (p *KafkaPublisher) Name() string {
	return constants.NotifierKafka
}

func (p *KafkaPublisher) Publish(ctx context.Context, notice models.EventNotice) error {
	if err := notice.Validate(); err != nil {
		return err
	}

	ctx, span := tracing.StartPublishSpan(ctx, p.topic)
	defer span.End()

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	headers := []kafka.Header{{Key: "content-type", Value: []byte("application/json")}}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   p.topic,
			Key:     []byte(notice.BinID),
			Value:   body,
			Headers: headers,
			Time:    notice.CreatedAt,
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.ObserveKafkaWrite(p.topic, len(body), time.Since(start))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
