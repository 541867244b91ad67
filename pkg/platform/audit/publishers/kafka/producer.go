// Package kafka provides the Kafka-backed audit event producer.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes audit events to a Kafka topic using franz-go.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the given seed brokers. Returns nil if no seeds are
// configured (Kafka publishing disabled).
func NewProducer(seeds []string, topic string) (*Producer, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Produce synchronously publishes one event keyed by aggregate ID so per-user
// ordering is preserved within a partition.
func (p *Producer) Produce(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and shuts down the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
