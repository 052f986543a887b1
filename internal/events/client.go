package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// PublishTimeout bounds the wait for a stream ack when the caller's context
// has no deadline.
const PublishTimeout = 2 * time.Second

// Client publishes dashboard events and tails the event stream.
type Client interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, opts SubscribeOptions, handler func(Envelope)) error
	Close()
}

type SubscribeOptions struct {
	// Filter narrows the subjects; empty means SubjectAll.
	Filter string
	// Replay delivers the retained history before new events.
	Replay bool
}

// NATSClient writes events into the MONEYBALL_EVENTS stream and waits for the
// server to acknowledge each one.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger

	mu          sync.Mutex
	streamReady bool
	consumers   []jetstream.ConsumeContext
}

func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("moneyball"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := &NATSClient{conn: nc, js: js, logger: logger}
	if err := c.ensureStream(ctx); err != nil {
		logger.Warn("event stream not ready, will retry on publish", "stream", StreamName, "error", err)
	}
	return c, nil
}

func streamConfig() jetstream.StreamConfig {
	maxAge, _ := time.ParseDuration(StreamMaxAge)
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "MoneyBall dashboard changes",
		Subjects:    []string{SubjectAll},
		MaxAge:      maxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  time.Minute,
	}
}

func (c *NATSClient) ensureStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamReady {
		return nil
	}
	if _, err := c.js.CreateOrUpdateStream(ctx, streamConfig()); err != nil {
		return err
	}
	c.streamReady = true
	return nil
}

// Publish wraps e in an Envelope and stores it in the stream.
func (c *NATSClient) Publish(ctx context.Context, e Event) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, PublishTimeout)
		defer cancel()
	}
	if err := c.ensureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	env, err := NewEnvelope(e)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ack, err := c.js.Publish(ctx, env.Subject, payload, jetstream.WithMsgID(env.ID))
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Subject, err)
	}
	c.logger.Debug("event published", "subject", env.Subject, "seq", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}

// Subscribe tails the stream through an ordered consumer until Close.
// Messages that do not decode are logged and skipped.
func (c *NATSClient) Subscribe(ctx context.Context, opts SubscribeOptions, handler func(Envelope)) error {
	if err := c.ensureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}
	filter := opts.Filter
	if filter == "" {
		filter = SubjectAll
	}
	policy := jetstream.DeliverNewPolicy
	if opts.Replay {
		policy = jetstream.DeliverAllPolicy
	}

	cons, err := c.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{filter},
		DeliverPolicy:  policy,
	})
	if err != nil {
		return fmt.Errorf("consumer on %s: %w", filter, err)
	}
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		env, err := decodeEnvelope(msg.Subject(), msg.Data())
		if err != nil {
			c.logger.Warn("skipping malformed event", "subject", msg.Subject(), "error", err)
			return
		}
		handler(env)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.consumers = append(c.consumers, cc)
	c.mu.Unlock()
	return nil
}

func (c *NATSClient) Close() {
	c.mu.Lock()
	for _, cc := range c.consumers {
		cc.Stop()
	}
	c.consumers = nil
	c.mu.Unlock()
	c.conn.Close()
}
