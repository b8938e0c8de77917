package consumer

import (
	"context"
	"encoding/json"
	"log"

	"example.com/trailsync/internal/audit"
	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/observability"
	"example.com/trailsync/internal/reconciler"
)

// Relocator runs one reconciliation pass per edit notification.
type Relocator interface {
	HandleEdit(ctx context.Context, edit domain.EditNotification) (reconciler.Outcome, error)
}

// AuditRecorder persists the per-edit audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// ReconcileHandler turns consumed edit events into reconciliation passes and
// records each outcome in the relocation log.
type ReconcileHandler struct {
	relocator Relocator
	audit     AuditRecorder
	logger    *log.Logger
}

// ReconcileHandlerOption configures a ReconcileHandler.
type ReconcileHandlerOption func(*ReconcileHandler)

// WithHandlerLogger overrides the handler's logger.
func WithHandlerLogger(logger *log.Logger) ReconcileHandlerOption {
	return func(h *ReconcileHandler) {
		h.logger = logger
	}
}

// NewReconcileHandler constructs the handler. audit may be nil when no
// relocation log is configured (local development).
func NewReconcileHandler(relocator Relocator, auditRec AuditRecorder, opts ...ReconcileHandlerOption) *ReconcileHandler {
	h := &ReconcileHandler{
		relocator: relocator,
		audit:     auditRec,
		logger:    log.New(log.Writer(), "[relocate] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes the edit notification and runs the pass. Reconciliation
// errors are returned so the message stays uncommitted and is redelivered;
// a repeated pass is safe because reconciliation is idempotent.
func (h *ReconcileHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != EventTypeRegistryEdited {
		h.logger.Printf("ignoring event_type=%s (offset=%d)", msg.EventType, msg.Offset)
		return nil
	}

	var edit domain.EditNotification
	if err := json.Unmarshal(msg.Payload, &edit); err != nil {
		// Malformed notifications are dropped, mirroring the decode path:
		// redelivery cannot fix them.
		h.logger.Printf("unparseable edit notification (offset=%d): %v", msg.Offset, err)
		return nil
	}
	if err := edit.Validate(); err != nil {
		h.logger.Printf("invalid edit notification (offset=%d): %v", msg.Offset, err)
		return nil
	}

	outcome, err := h.relocator.HandleEdit(ctx, edit)
	if err != nil {
		return err
	}
	observability.RecordEditProcessed(msg.Timestamp)

	if h.audit == nil {
		return nil
	}
	return h.audit.Record(ctx, audit.Entry{
		Sheet:      edit.Sheet,
		Row:        edit.Row,
		Column:     edit.Column,
		TrailID:    outcome.TrailID,
		Action:     outcome.Action,
		FromTier:   outcome.FromTier,
		ToTier:     outcome.ToTier,
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		Payload:    msg.Payload,
		ReceivedAt: msg.Timestamp,
	})
}
