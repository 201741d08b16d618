// Package kafka implements the producer-ingress adapter: it consumes
// JSON-encoded tag.QueryResult records from a Kafka/Redpanda topic and
// feeds each into the manager's ValueReceived ingress.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/adred-codev/taghub/internal/tag"
)

// ValueSink receives each decoded record. *manager.Manager satisfies
// this via its ValueReceived method.
type ValueSink interface {
	ValueReceived(value tag.QueryResult) bool
}

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Error(msg string, kv ...any)
}

// Config configures a Consumer.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	Topic         string
	Sink          ValueSink
	Logger        Logger
}

// Consumer wraps a franz-go client consuming one topic of JSON
// tag.QueryResult records.
type Consumer struct {
	client *kgo.Client
	sink   ValueSink
	logger Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer builds a Consumer. It does not start consuming until
// Start is called.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("a topic is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("a value sink is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Consumer{client: client, sink: cfg.Sink, logger: cfg.Logger}, nil
}

// Start begins the consume loop in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)
}

// Stop cancels the consume loop, waits for it to return, and closes
// the underlying client.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.client.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if c.logger != nil {
				c.logger.Error("kafka fetch error", "topic", topic, "partition", partition, "err", err)
			}
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			decodeAndDispatch(rec.Value, c.sink, c.logger)
		})
	}
}

// decodeAndDispatch unmarshals a single record's value as a
// tag.QueryResult and forwards it to sink. Isolated from kgo.Record so
// it can be exercised without a live broker.
func decodeAndDispatch(value []byte, sink ValueSink, logger Logger) bool {
	var qr tag.QueryResult
	if err := json.Unmarshal(value, &qr); err != nil {
		if logger != nil {
			logger.Error("malformed tag record", "err", err)
		}
		return false
	}
	return sink.ValueReceived(qr)
}
