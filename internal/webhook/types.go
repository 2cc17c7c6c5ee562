package webhook

import (
	"encoding/json"
	"time"
)

// EventType is the internal tag for one provider-reported occurrence.
type EventType string

const (
	EventDelivered    EventType = "delivered"
	EventBounced      EventType = "bounced"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventUnsubscribed EventType = "unsubscribed"
	EventSpamReported EventType = "spam_reported"
	EventDropped      EventType = "dropped"
)

// providerEventTypes maps the provider's wire strings onto internal types.
// Providers are not consistent about tense, so both forms are accepted.
var providerEventTypes = map[string]EventType{
	"delivered":    EventDelivered,
	"bounce":       EventBounced,
	"bounced":      EventBounced,
	"open":         EventOpened,
	"opened":       EventOpened,
	"click":        EventClicked,
	"clicked":      EventClicked,
	"unsubscribe":  EventUnsubscribed,
	"unsubscribed": EventUnsubscribed,
	"spamreport":   EventSpamReported,
	"spam_report":  EventSpamReported,
	"dropped":      EventDropped,
}

// ignoredEventTypes are provider housekeeping events with no business
// meaning. They are dropped silently, not logged as errors.
var ignoredEventTypes = map[string]bool{
	"processed": true,
	"deferred":  true,
}

// Behavior drives the recorder's static type→behavior table.
type Behavior struct {
	Recordable bool
}

var eventBehavior = map[EventType]Behavior{
	EventDelivered:    {Recordable: true},
	EventBounced:      {Recordable: true},
	EventOpened:       {Recordable: true},
	EventClicked:      {Recordable: true},
	EventUnsubscribed: {Recordable: true},
	EventSpamReported: {Recordable: true},
	// drops never reached a mailbox; the archive keeps the raw payload but
	// no message event is written
	EventDropped: {Recordable: false},
}

// BehaviorFor returns the behavior table entry for an internal event type.
func BehaviorFor(t EventType) Behavior {
	return eventBehavior[t]
}

// ProviderEvent is one element of the raw webhook batch, as the provider
// sends it. Fields beyond the minimum set are optional and vary by type.
type ProviderEvent struct {
	Email             string `json:"email"`
	Timestamp         int64  `json:"timestamp"`
	Event             string `json:"event"`
	TenantID          string `json:"tenant_id,omitempty"`
	ProviderEventID   string `json:"event_id,omitempty"`
	ProviderMessageID string `json:"message_id,omitempty"`
	TransportID       string `json:"transport_id,omitempty"`
	OutboundMessageID int    `json:"outbound_message_id,omitempty"`
	URL               string `json:"url,omitempty"`
	Reason            string `json:"reason,omitempty"`

	// Raw holds the original element bytes for archival.
	Raw json.RawMessage `json:"-"`
}

// ValidatedEvent is the internal representation after normalization. Every
// ValidatedEvent has a non-empty ProviderEventID, synthesized when the
// provider omitted one.
type ValidatedEvent struct {
	Type              EventType
	Email             string
	OccurredAt        time.Time
	TenantID          string
	ProviderEventID   string
	ProviderMessageID string
	TransportID       string
	OutboundMessageID int
	Raw               json.RawMessage
}
