package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change operations carried by ChangeMessage.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeMessage announces a committed write to one row of the local store.
// Consumers reload the row by Table and RowID; the message carries no payload.
type ChangeMessage struct {
	ID        uuid.UUID `json:"id"`
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	RowID     int64     `json:"row_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage stamps a change with a fresh id. A zero at is replaced by now.
func NewChangeMessage(table, op string, rowID int64, at time.Time) *ChangeMessage {
	if at.IsZero() {
		at = time.Now()
	}
	return &ChangeMessage{
		ID:        uuid.New(),
		Table:     table,
		Op:        op,
		RowID:     rowID,
		Timestamp: at.UTC(),
	}
}

// Validate rejects messages no consumer could act on.
func (m *ChangeMessage) Validate() error {
	if m.Table == "" {
		return fmt.Errorf("missing table")
	}
	switch m.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	if m.RowID <= 0 {
		return fmt.Errorf("invalid row id %d", m.RowID)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid change message: %w", err)
	}
	return &msg, nil
}
