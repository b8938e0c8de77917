package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/trailsync/internal/audit"
	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/reconciler"
)

func editMessage(t *testing.T, edit domain.EditNotification) Message {
	t.Helper()
	payload, err := json.Marshal(edit)
	require.NoError(t, err)
	return Message{
		Topic:     "registry_edits",
		Offset:    5,
		Timestamp: time.Now().UTC(),
		EventType: EventTypeRegistryEdited,
		Payload:   payload,
	}
}

func TestReconcileHandlerRunsPassAndAudits(t *testing.T) {
	relocator := &stubRelocator{outcome: reconciler.Outcome{
		TrailID: "42", Action: reconciler.ActionRelocated, FromTier: "Easy", ToTier: "Moderate",
	}}
	auditRec := &stubAudit{}
	h := NewReconcileHandler(relocator, auditRec, WithHandlerLogger(log.New(testWriter{t}, "", 0)))

	edit := domain.EditNotification{Sheet: "TrailsMaster", Row: 7, Column: domain.ColumnDifficulty}
	err := h.Handle(context.Background(), editMessage(t, edit))
	require.NoError(t, err)

	require.Equal(t, 1, relocator.calls)
	require.Equal(t, edit, relocator.last)
	require.Len(t, auditRec.entries, 1)
	require.Equal(t, "42", auditRec.entries[0].TrailID)
	require.Equal(t, reconciler.ActionRelocated, auditRec.entries[0].Action)
	require.Equal(t, "Moderate", auditRec.entries[0].ToTier)
}

func TestReconcileHandlerPropagatesPassErrors(t *testing.T) {
	relocator := &stubRelocator{err: errors.New("registry write failed")}
	h := NewReconcileHandler(relocator, &stubAudit{}, WithHandlerLogger(log.New(testWriter{t}, "", 0)))

	err := h.Handle(context.Background(), editMessage(t, domain.EditNotification{
		Sheet: "TrailsMaster", Row: 2, Column: 1,
	}))
	require.Error(t, err)
}

func TestReconcileHandlerIgnoresForeignEventTypes(t *testing.T) {
	relocator := &stubRelocator{}
	h := NewReconcileHandler(relocator, &stubAudit{}, WithHandlerLogger(log.New(testWriter{t}, "", 0)))

	msg := editMessage(t, domain.EditNotification{Sheet: "TrailsMaster", Row: 2, Column: 1})
	msg.EventType = "weather.updated"

	err := h.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.Zero(t, relocator.calls)
}

func TestReconcileHandlerDropsInvalidNotifications(t *testing.T) {
	relocator := &stubRelocator{}
	h := NewReconcileHandler(relocator, &stubAudit{}, WithHandlerLogger(log.New(testWriter{t}, "", 0)))

	msg := editMessage(t, domain.EditNotification{Sheet: "", Row: 0, Column: 99})
	err := h.Handle(context.Background(), msg)
	require.NoError(t, err, "invalid notifications are dropped, not retried")
	require.Zero(t, relocator.calls)
}

type stubRelocator struct {
	calls   int
	last    domain.EditNotification
	outcome reconciler.Outcome
	err     error
}

func (s *stubRelocator) HandleEdit(_ context.Context, edit domain.EditNotification) (reconciler.Outcome, error) {
	s.calls++
	s.last = edit
	return s.outcome, s.err
}

type stubAudit struct {
	entries []audit.Entry
	err     error
}

func (s *stubAudit) Record(_ context.Context, e audit.Entry) error {
	s.entries = append(s.entries, e)
	return s.err
}
