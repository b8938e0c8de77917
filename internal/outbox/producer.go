package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer delivers outbox batches to Kafka. Relocation traffic is
// low-volume (one event per sheet edit) and spans exactly the topics in the
// event catalog, so a single shared writer with per-message topics is enough;
// there is no writer pool to manage.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer constructs a producer for the given brokers. The hash
// balancer keeps every event for one trail id on one partition, so consumers
// observe that trail's relocations in order.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// WriteMessages stamps the topic onto each message and writes the batch.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and releases the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
