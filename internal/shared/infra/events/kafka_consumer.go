package events

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler es el contrato de los consumidores que reciben bytes del bus (como el dispatcher).
// Un error deja el mensaje sin confirmar.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte) error
}

// ConsumerAdapter es el "oído" que escucha en Kafka.
// El offset sólo se confirma después de que el handler termine sin error.
type ConsumerAdapter struct {
	reader  *kafka.Reader
	handler MessageHandler
	log     *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// NewKafkaReader crea un reader de grupo sobre varios topics con commit manual.
func NewKafkaReader(brokers []string, groupID string, topics []string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// Serve consume hasta que ctx se cancela. Implementa suture.Service.
func (c *ConsumerAdapter) Serve(ctx context.Context) error {
	cfg := c.reader.Config()
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.Strings("topics", cfg.GroupTopics),
		zap.Strings("brokers", cfg.Brokers),
	)

	for {
		// FetchMessage es una llamada bloqueante y no confirma el offset.
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumidor de Kafka detenido.")
				return ctx.Err()
			}
			c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			return err
		}

		if err := c.handle(ctx, msg); err != nil {
			// Sin commit: el grupo lo volverá a entregar tras reiniciar el servicio
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("Error al confirmar offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *ConsumerAdapter) handle(ctx context.Context, msg kafka.Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = time.Minute

	return backoff.RetryNotify(func() error {
		return c.handler.HandleMessage(ctx, string(msg.Key), msg.Value)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.log.Warn("Handler failed, retrying",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

func (c *ConsumerAdapter) String() string { return "kafka-consumer" }

func (c *ConsumerAdapter) Close() error {
	return c.reader.Close()
}
