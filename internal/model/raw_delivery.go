package model

import "time"

// RawDelivery processing statuses.
const (
	DeliveryReceived       = "received"
	DeliveryProcessed      = "processed"
	DeliveryPartialFailure = "partial_failure"
)

// RawDelivery is the immutable archive of one inbound webhook call. It is
// written before any event-level processing so a total downstream failure
// still leaves an auditable record. Only Status is ever updated.
type RawDelivery struct {
	ID        int       `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Provider  string    `db:"provider" json:"provider"`
	EventType string    `db:"event_type" json:"event_type"` // single event type, or "batch"
	MessageID string    `db:"message_id" json:"message_id,omitempty"`
	Payload   []byte    `db:"payload" json:"-"`
	Signature string    `db:"signature" json:"-"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
