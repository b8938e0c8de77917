package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one claimed outbox row: a relocation or unclassified event
// waiting for delivery.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Dispatcher polls the outbox table and publishes recorded relocation events
// to Kafka. Payloads get Confluent framing; undeliverable batches land in the
// DLQ table for the retry manager.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	dlq          *DLQWriter
	pollInterval time.Duration
	batchSize    int

	mu        sync.Mutex
	schemaIDs map[string]int

	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher over the given pool and producer.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		schemaIDs:        make(map[string]int),
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled. Call it in a
// goroutine and use Wait to block on shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("relocation outbox: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the dispatcher loop has exited.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) drainOnce(ctx context.Context) error {
	start := time.Now()

	batch, err := d.claimBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	if err := d.publish(ctx, batch); err != nil {
		log.Printf("relocation outbox delivery failed, parking batch in dlq: %v", err)
		failedCounter.Add(float64(len(batch)))
		if dlqErr := d.parkInDLQ(ctx, batch, err.Error()); dlqErr != nil {
			return dlqErr
		}
		// Parked rows are marked published so the next poll does not
		// re-claim them; the retry manager owns them now.
		return d.markPublished(ctx, batch)
	}

	deliveredCounter.Add(float64(len(batch)))
	return d.markPublished(ctx, batch)
}

// claimBatch stamps claimed_at on the oldest unpublished rows and returns
// them. The inner SELECT skips rows another instance holds, so concurrent
// dispatchers never double-deliver a claim.
func (d *Dispatcher) claimBatch(ctx context.Context) ([]Message, error) {
	const query = `UPDATE outbox SET claimed_at = NOW()
        WHERE event_id IN (
            SELECT event_id FROM outbox
             WHERE published_at IS NULL
             ORDER BY event_id
             LIMIT $1
             FOR UPDATE SKIP LOCKED)
        RETURNING event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload`

	rows, err := d.pool.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload); err != nil {
			return nil, err
		}
		batch = append(batch, msg)
	}
	return batch, rows.Err()
}

func (d *Dispatcher) publish(ctx context.Context, batch []Message) error {
	perTopic := make(map[string][]kafka.Message)
	for _, msg := range batch {
		framed, err := d.frame(ctx, msg)
		if err != nil {
			return err
		}
		perTopic[msg.Topic] = append(perTopic[msg.Topic], kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: framed,
			Time:  time.Now().UTC(),
		})
	}

	for topic, msgs := range perTopic {
		if err := d.producer.WriteMessages(ctx, topic, msgs...); err != nil {
			return err
		}
	}
	return nil
}

// frame wraps the payload in the Confluent wire format, registering the
// event's schema on first use and caching the id afterwards.
func (d *Dispatcher) frame(ctx context.Context, msg Message) ([]byte, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return nil, fmt.Errorf("no schema for event_type=%s", msg.EventType)
	}

	d.mu.Lock()
	id, cached := d.schemaIDs[msg.SchemaSubject]
	d.mu.Unlock()

	if !cached {
		var err error
		id, err = d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.schemaIDs[msg.SchemaSubject] = id
		d.mu.Unlock()
	}

	framed := make([]byte, 5+len(msg.Payload))
	framed[0] = 0
	binary.BigEndian.PutUint32(framed[1:5], uint32(id))
	copy(framed[5:], msg.Payload)
	return framed, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, batch []Message) error {
	ids := make([]int64, 0, len(batch))
	for _, msg := range batch {
		ids = append(ids, msg.EventID)
	}

	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

func (d *Dispatcher) parkInDLQ(ctx context.Context, batch []Message, reason string) error {
	for _, msg := range batch {
		if err := d.dlq.Write(ctx, msg, fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// schemaCatalog maps outbound event types to their JSON-schema definitions.
var schemaCatalog = map[string]string{
	"trail.relocated":    trailRelocatedSchema,
	"trail.unclassified": trailUnclassifiedSchema,
}
