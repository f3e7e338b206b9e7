package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	defaultStreamName = "COURTMATE"

	// correlationHeader carries the originating request ID across the bus.
	correlationHeader = "X-Request-ID"

	streamMaxAge   = 7 * 24 * time.Hour
	consumerAckTTL = 30 * time.Second
	maxDeliveries  = 5
)

// Event is the envelope every message on the bus is wrapped in.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ID.
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// HandlerFunc processes one event. A nil return acks it; an error schedules
// a redelivery until the consumer gives up.
type HandlerFunc func(ctx context.Context, event *Event) error

// ErrPoison marks an event that can never be handled; it is terminated
// instead of redelivered.
var ErrPoison = errors.New("event cannot be processed")

type Publisher interface {
	Publish(ctx context.Context, subject string, event *Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, subject, consumerName string, handler HandlerFunc) error
}

// Config holds NATS connection settings.
type Config struct {
	URL        string
	Name       string
	StreamName string
}

// DefaultConfig points at a local NATS server.
func DefaultConfig() Config {
	return Config{URL: nats.DefaultURL, Name: "courtmate", StreamName: defaultStreamName}
}

func (c Config) stream() string {
	if c.StreamName == "" {
		return defaultStreamName
	}
	return c.StreamName
}

// Bus publishes and consumes events over a JetStream stream.
type Bus struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  Config
	subs []jetstream.ConsumeContext
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// New connects to NATS and makes sure the booking stream exists.
func New(cfg Config) (*Bus, error) {
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureStream(ctx, js, cfg.stream()); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("event bus ready", zap.String("url", cfg.URL), zap.String("stream", cfg.stream()))
	return &Bus{conn: nc, js: js, cfg: cfg}, nil
}

func connect(cfg Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("event bus disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("event bus reconnected", zap.String("server", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// ensureStream keeps booking events for a week or until every interested
// consumer has acked them.
func ensureStream(ctx context.Context, js jetstream.JetStream, name string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       name,
		Subjects:   StreamSubjects,
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.InterestPolicy,
		MaxAge:     streamMaxAge,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// Publish stores the event on subject. The event ID is the dedup key, so a
// retried publish of the same event is stored once.
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	msg, err := encode(ctx, subject, event)
	if err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	logger.DebugContext(ctx, "event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
	)
	return nil
}

func encode(ctx context.Context, subject string, event *Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(correlationHeader, id)
	}
	return msg, nil
}

// Subscribe attaches a durable consumer named consumerName to subject.
// Each subscribing component needs its own name.
func (b *Bus) Subscribe(ctx context.Context, subject, consumerName string, handler HandlerFunc) error {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.stream(), jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       consumerAckTTL,
		MaxDeliver:    maxDeliveries,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		dispatch(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	b.subs = append(b.subs, cc)
	logger.Info("event consumer started", zap.String("subject", subject), zap.String("consumer", consumerName))
	return nil
}

// delivery is the part of jetstream.Msg dispatch needs.
type delivery interface {
	Data() []byte
	Headers() nats.Header
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// dispatch decodes one delivery, runs the handler and settles the message.
func dispatch(ctx context.Context, msg delivery, handler HandlerFunc) {
	var event Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Warn("dropping undecodable event", zap.Error(err))
		_ = msg.Term()
		return
	}

	if id := msg.Headers().Get(correlationHeader); id != "" {
		ctx = logger.ContextWithCorrelationID(ctx, id)
	}

	err := handler(ctx, &event)
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrPoison):
		logger.WarnContext(ctx, "dropping event", zap.String("event_id", event.ID), zap.Error(err))
		_ = msg.Term()
	default:
		logger.WarnContext(ctx, "event handler failed, redelivering",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		_ = msg.NakWithDelay(redeliveryDelay)
	}
}

const redeliveryDelay = 5 * time.Second

// Close stops the consumers and drains the connection.
func (b *Bus) Close() {
	for _, sub := range b.subs {
		sub.Stop()
	}
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

// Connected reports whether the NATS connection is up.
func (b *Bus) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}
