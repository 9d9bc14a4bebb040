package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher publishes registration events to the message broker
type Publisher interface {
	// PublishPaymentStatus publishes a payment status transition
	PublishPaymentStatus(ctx context.Context, event *PaymentStatusEvent) error

	// Close flushes pending records and releases the connection
	Close()
}

// KafkaPublisher implements Publisher using Kafka
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafkaPublisher creates a new Kafka publisher
func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) PublishPaymentStatus(ctx context.Context, event *PaymentStatusEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: TopicPaymentStatus,
		Key:   []byte(event.Key()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", TopicPaymentStatus, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NoOpPublisher is a Publisher that drops all events. Used when no broker is
// configured.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) PublishPaymentStatus(ctx context.Context, event *PaymentStatusEvent) error {
	return nil
}

func (p *NoOpPublisher) Close() {}

// MemoryPublisher is a Publisher that records events in memory for tests
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*PaymentStatusEvent
}

// NewMemoryPublisher creates a new in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishPaymentStatus(ctx context.Context, event *PaymentStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() {}

// Events returns a snapshot of the published events
func (p *MemoryPublisher) Events() []*PaymentStatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*PaymentStatusEvent(nil), p.events...)
}
