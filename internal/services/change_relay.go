package services

import (
	"context"

	"travelbook/internal/amqp"
	"travelbook/internal/live"
	applog "travelbook/internal/log"
)

// Publisher sends change messages to the broker.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// ChangeRelay forwards every committed store write to the broker so that
// out-of-process consumers can mirror it. The local write has already
// succeeded when the relay runs, so publish failures are logged and dropped.
type ChangeRelay struct {
	publisher Publisher
}

// NewChangeRelay returns a relay publishing through p. A nil p disables publishing.
func NewChangeRelay(p Publisher) *ChangeRelay {
	return &ChangeRelay{publisher: p}
}

// Attach registers the relay on r so that it sees every write.
func (r *ChangeRelay) Attach(reg *live.Registry) {
	reg.OnInvalidate(r.Handle)
}

// Handle publishes c. It never fails.
func (r *ChangeRelay) Handle(ctx context.Context, c live.Change) {
	logger := applog.For(ctx, applog.ComponentRelay)
	fields := applog.NewFields().WithChange(c.Table, c.Op, c.RowID)
	if r == nil || r.publisher == nil {
		logger.DebugContext(ctx, "AMQP publisher not available, skipping change message", fields.ToSlice()...)
		return
	}

	msg := amqp.NewChangeMessage(c.Table, c.Op, c.RowID, c.Timestamp)
	fields[applog.FieldMessageID] = msg.ID
	if err := r.publisher.PublishChange(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish change message", fields.WithError(err).ToSlice()...)
		return
	}

	logger.InfoContext(ctx, "Change published", fields.ToSlice()...)
}
