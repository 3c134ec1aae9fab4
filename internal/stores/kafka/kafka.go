package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

// Conf wraps a franz-go producer client.
type Conf struct {
	client *kgo.Client
}

func NewConf(brokers []string) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Conf{client: client}, nil
}

// ProduceMessage synchronously produces one record and returns the first
// produce error, if any.
func (c *Conf) ProduceMessage(topic string, key []byte, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := c.client.ProduceSync(context.Background(), record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", topic, err)
	}
	return nil
}

func (c *Conf) Close() {
	c.client.Close()
}

// Consumer polls a topic as part of a consumer group and hands every record
// to the provided handler. Offsets are committed after the poll loop, so
// delivery is at-least-once; handlers must tolerate replays.
type Consumer struct {
	client *kgo.Client
}

func NewConsumer(brokers []string, group string, topics ...string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return &Consumer{client: client}, nil
}

// Run blocks until ctx is canceled, delivering each record to handler.
// Handler errors are logged and the record is skipped; poisoned messages
// must not wedge the group.
func (c *Consumer) Run(ctx context.Context, handler func(ctx context.Context, key []byte, value []byte) error) {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				slog.Error("kafka fetch error", slog.String("Topic", e.Topic), slog.String(logkey.ERROR, e.Err.Error()))
			}
			continue
		}
		fetches.EachRecord(func(record *kgo.Record) {
			if err := handler(ctx, record.Key, record.Value); err != nil {
				slog.Error("failed to handle kafka record",
					slog.String("Topic", record.Topic), slog.String(logkey.ERROR, err.Error()))
			}
		})
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
