package model

import (
	"strconv"
	"time"
)

// MessageEvent is the normalized record of one provider-reported occurrence
// against a previously sent message. At most one exists per
// (tenant, provider event id) when the provider supplies a stable id.
type MessageEvent struct {
	ID              int       `db:"id" json:"id"`
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	MessageID       string    `db:"message_id" json:"message_id"`
	EventType       string    `db:"event_type" json:"event_type"`
	OccurredAt      time.Time `db:"occurred_at" json:"occurred_at"` // provider time, not receipt time
	ProviderEventID string    `db:"provider_event_id" json:"provider_event_id"`
	Payload         []byte    `db:"payload" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// OutboundMessageID resolves MessageID to an outbound message row id.
// The field is fallback-derived and may hold a provider identifier or
// "unknown" instead; those resolve to false.
func (e *MessageEvent) OutboundMessageID() (int, bool) {
	id, err := strconv.Atoi(e.MessageID)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
