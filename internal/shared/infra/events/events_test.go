package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	domainEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEnvelope() domainEvents.Envelope {
	return domainEvents.Envelope{
		SpecVersion:   domainEvents.SpecVersion,
		Type:          domainEvents.PlacementCreated,
		Source:        "placementlab/placement",
		ID:            uuid.New(),
		Time:          time.Now().UTC().Truncate(time.Millisecond),
		Subject:       uuid.NewString(),
		SchemaVersion: 1,
		CorrelationID: uuid.NewString(),
		Data:          json.RawMessage(`{"id":"x"}`),
	}
}

func TestInMemoryEventBus_DeliversToAllHandlers(t *testing.T) {
	// Arrange
	bus := NewInMemoryEventBus()
	var got []string
	bus.Subscribe(func(ctx context.Context, env domainEvents.Envelope) error {
		got = append(got, "a:"+env.Type)
		return nil
	})
	bus.Subscribe(func(ctx context.Context, env domainEvents.Envelope) error {
		got = append(got, "b:"+env.Type)
		return nil
	})

	// Act
	err := bus.Publish(context.Background(), domainEvents.PlacementTopic, testEnvelope())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"a:" + domainEvents.PlacementCreated, "b:" + domainEvents.PlacementCreated}, got)
}

func TestInMemoryEventBus_HandlerErrorIsReported(t *testing.T) {
	bus := NewInMemoryEventBus()
	delivered := false
	bus.Subscribe(func(ctx context.Context, env domainEvents.Envelope) error { return errors.New("queue down") })
	bus.Subscribe(func(ctx context.Context, env domainEvents.Envelope) error {
		delivered = true
		return nil
	})

	err := bus.Publish(context.Background(), domainEvents.PlacementTopic, testEnvelope())

	assert.Error(t, err)
	assert.True(t, delivered, "un handler que falla no impide la entrega a los demás")
}

type captureHandler struct {
	payloads chan []byte
}

func (h *captureHandler) HandleMessage(ctx context.Context, key string, payload []byte) error {
	h.payloads <- payload
	return nil
}

func TestKafkaRoundTrip_Integration(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping Kafka integration test")
	}
	list := strings.Split(brokers, ",")
	topic := "placementlab-test-" + uuid.NewString()[:8]

	writer := NewKafkaWriter(list)
	publisher := NewKafkaPublisher(writer, zap.NewNop())
	t.Cleanup(func() { publisher.Close() })

	env := testEnvelope()
	require.NoError(t, publisher.Publish(context.Background(), topic, env))

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: list, GroupID: "test-" + topic, Topic: topic, StartOffset: kafka.FirstOffset})
	handler := &captureHandler{payloads: make(chan []byte, 1)}
	consumer := NewConsumerAdapter(reader, handler, zap.NewNop())
	t.Cleanup(func() { consumer.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() { _ = consumer.Serve(ctx) }()

	select {
	case payload := <-handler.payloads:
		decoded, err := domainEvents.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, env.ID, decoded.ID)
	case <-ctx.Done():
		t.Fatal("no message consumed")
	}
}

func TestNATSRoundTrip_Integration(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping NATS integration test")
	}

	bus, err := NewNATSBus(url, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })

	handler := &captureHandler{payloads: make(chan []byte, 16)}
	consumer := bus.NewConsumer("test-"+uuid.NewString()[:8], handler)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() { _ = consumer.Serve(ctx) }()

	env := testEnvelope()
	require.NoError(t, bus.Publish(ctx, domainEvents.PlacementTopic, env))
	// Republicar el mismo id no produce un segundo mensaje
	require.NoError(t, bus.Publish(ctx, domainEvents.PlacementTopic, env))

	for {
		select {
		case payload := <-handler.payloads:
			decoded, err := domainEvents.Decode(payload)
			require.NoError(t, err)
			if decoded.ID == env.ID {
				return
			}
		case <-ctx.Done():
			t.Fatal("no message consumed")
		}
	}
}
