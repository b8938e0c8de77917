package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestPublishFramesAndGroupsByTopic(t *testing.T) {
	registrar := &stubRegistrar{id: 7}
	producer := &stubProducer{batches: make(map[string][]kafka.Message)}
	d := NewDispatcher(nil, producer, registrar, time.Second, 10)

	batch := []Message{
		{EventID: 1, EventType: "trail.relocated", Topic: "trail_events", SchemaSubject: "trail_events-value", PartitionKey: "42", Payload: json.RawMessage(`{"trail_id":"42"}`)},
		{EventID: 2, EventType: "trail.relocated", Topic: "trail_events", SchemaSubject: "trail_events-value", PartitionKey: "43", Payload: json.RawMessage(`{"trail_id":"43"}`)},
		{EventID: 3, EventType: "trail.unclassified", Topic: "trail_unclassified", SchemaSubject: "trail_unclassified-value", PartitionKey: "42", Payload: json.RawMessage(`{"trail_id":"42"}`)},
	}

	require.NoError(t, d.publish(context.Background(), batch))

	require.Len(t, producer.batches["trail_events"], 2)
	require.Len(t, producer.batches["trail_unclassified"], 1)

	// One registry round trip per subject; the second trail_events message
	// hits the cache.
	require.Equal(t, 2, registrar.calls)

	framed := producer.batches["trail_events"][0].Value
	require.Equal(t, byte(0), framed[0], "magic byte")
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(framed[1:5]))
	require.JSONEq(t, `{"trail_id":"42"}`, string(framed[5:]))
	require.Equal(t, []byte("42"), producer.batches["trail_events"][0].Key)
}

func TestPublishRejectsUnknownEventType(t *testing.T) {
	registrar := &stubRegistrar{id: 7}
	producer := &stubProducer{batches: make(map[string][]kafka.Message)}
	d := NewDispatcher(nil, producer, registrar, time.Second, 10)

	err := d.publish(context.Background(), []Message{
		{EventID: 1, EventType: "trail.renamed", Topic: "trail_events", SchemaSubject: "trail_events-value"},
	})
	require.Error(t, err)
	require.Empty(t, producer.batches, "nothing may reach the producer")
}

type stubRegistrar struct {
	id    int
	calls int
	err   error
}

func (s *stubRegistrar) EnsureSchema(context.Context, string, string) (int, error) {
	s.calls++
	return s.id, s.err
}

type stubProducer struct {
	batches map[string][]kafka.Message
	err     error
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.batches[topic] = append(s.batches[topic], msgs...)
	return nil
}
