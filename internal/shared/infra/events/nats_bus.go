package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	domainEvents "github.com/davicafu/placementlab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/placementlab/internal/shared/infra/platform/bus"
)

const (
	NATSStream        = "NEDLIA_EVENTS"
	NATSSubjectPrefix = "nedlia.events."
)

// NATSBus publica y consume envelopes sobre JetStream.
// El id del evento viaja como Nats-Msg-Id, de modo que el stream descarta
// republicaciones dentro de su ventana de duplicados.
type NATSBus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
}

// NewNATSBus conecta con reconexión automática y asegura que el stream existe.
func NewNATSBus(url string, log *zap.Logger, opts ...nats.Option) (*NATSBus, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening JetStream: %w", err)
	}

	if _, err := js.StreamInfo(NATSStream); errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       NATSStream,
			Subjects:   []string{NATSSubjectPrefix + ">"},
			Storage:    nats.FileStorage,
			Duplicates: 10 * time.Minute,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating stream %s: %w", NATSStream, err)
		}
	} else if err != nil {
		nc.Close()
		return nil, fmt.Errorf("reading stream %s: %w", NATSStream, err)
	}

	return &NATSBus{conn: nc, js: js, log: log}, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string, env domainEvents.Envelope) error {
	data, err := domainEvents.Encode(env)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	_, err = b.js.Publish(NATSSubjectPrefix+topic, data, nats.MsgId(env.ID.String()), nats.Context(ctx))
	return err
}

// NATSConsumer es un consumidor durable de tipo pull sobre el stream.
type NATSConsumer struct {
	bus      *NATSBus
	durable  string
	handler  MessageHandler
	batch    int
	nakDelay time.Duration
}

func (b *NATSBus) NewConsumer(durable string, handler MessageHandler) *NATSConsumer {
	return &NATSConsumer{bus: b, durable: durable, handler: handler, batch: 32, nakDelay: 2 * time.Second}
}

// Serve implementa suture.Service.
func (c *NATSConsumer) Serve(ctx context.Context) error {
	sub, err := c.bus.js.PullSubscribe(NATSSubjectPrefix+">", c.durable,
		nats.BindStream(NATSStream), nats.AckExplicit())
	if err != nil {
		return fmt.Errorf("subscribing durable %s: %w", c.durable, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.bus.log.Info("🎧 Iniciando consumidor de NATS...", zap.String("durable", c.durable))
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgs, err := sub.Fetch(c.batch, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		for _, msg := range msgs {
			if err := c.handler.HandleMessage(ctx, msg.Header.Get(nats.MsgIdHdr), msg.Data); err != nil {
				c.bus.log.Warn("Handler failed, message will be redelivered", zap.Error(err))
				_ = msg.NakWithDelay(c.nakDelay)
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *NATSConsumer) String() string { return "nats-consumer:" + c.durable }

func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

var _ sharedBus.EventBus = (*NATSBus)(nil)
