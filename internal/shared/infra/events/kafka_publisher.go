package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/segmentio/kafka-go"

	domainEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
)

// KafkaPublisher escribe envelopes en Kafka. El writer no fija topic: cada
// mensaje lleva el suyo y se particiona por agregado.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// NewKafkaWriter crea un writer que espera la confirmación de todas las réplicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, env domainEvents.Envelope) error {
	data, err := domainEvents.Encode(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(env.PartitionKey()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "ce_type", Value: []byte(env.Type)},
			{Key: "ce_id", Value: []byte(env.ID.String())},
			{Key: "correlation_id", Value: []byte(env.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.String("topic", topic), zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.String("topic", topic), zap.String("event_id", env.ID.String()))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Verificación estática
var (
	_ sharedBus.EventBus = (*KafkaPublisher)(nil)
	_ sharedBus.Keyer    = domainEvents.Envelope{}
)
