package service

import (
	"log"
	"strconv"

	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

// Record outcomes.
const (
	RecordStatusRecorded = "recorded"
	RecordStatusSkipped  = "skipped"
	RecordStatusFailed   = "failed"
)

// Skip reasons surfaced in RecordOutcome.
const (
	SkipNotRecordable = "not recordable"
	SkipDuplicate     = "duplicate"
)

// RecordOutcome is the per-event result of recording.
type RecordOutcome struct {
	Status string
	Reason string
	Event  *model.MessageEvent
}

// EventRecorder persists one validated event as a message event, skipping
// non-recordable types and duplicates.
type EventRecorder struct {
	Events       repository.MessageEventRepositoryInterface
	DedupEnabled bool
}

// Record applies the static type behavior table, then the dedup lookup,
// then writes. A failed dedup lookup is treated as not-found: the system
// fails open toward re-processing rather than silently dropping data.
func (r *EventRecorder) Record(tenantID string, ev webhook.ValidatedEvent) RecordOutcome {
	if !webhook.BehaviorFor(ev.Type).Recordable {
		return RecordOutcome{Status: RecordStatusSkipped, Reason: SkipNotRecordable}
	}

	if r.DedupEnabled {
		existing, err := r.Events.FindByProviderEventID(tenantID, ev.ProviderEventID)
		if err != nil {
			log.Printf("⚠️ dedup lookup failed for event %s, proceeding as new: %v", ev.ProviderEventID, err)
		} else if existing != nil {
			return RecordOutcome{Status: RecordStatusSkipped, Reason: SkipDuplicate, Event: existing}
		}
	}

	event := &model.MessageEvent{
		TenantID:        tenantID,
		MessageID:       DeriveMessageID(ev),
		EventType:       string(ev.Type),
		OccurredAt:      ev.OccurredAt,
		ProviderEventID: ev.ProviderEventID,
		Payload:         ev.Raw,
	}
	if err := r.Events.Create(event); err != nil {
		log.Printf("⚠️ failed to record event %s: %v", ev.ProviderEventID, err)
		return RecordOutcome{Status: RecordStatusFailed, Reason: err.Error()}
	}
	return RecordOutcome{Status: RecordStatusRecorded, Event: event}
}

// DeriveMessageID picks the sent-message reference for an event. Providers
// do not populate every field for every event type, so the chain falls
// through outbound message id, provider message id, transport id, and
// finally a marker that keeps the event recordable for audit.
func DeriveMessageID(ev webhook.ValidatedEvent) string {
	if ev.OutboundMessageID > 0 {
		return strconv.Itoa(ev.OutboundMessageID)
	}
	if ev.ProviderMessageID != "" {
		return ev.ProviderMessageID
	}
	if ev.TransportID != "" {
		return ev.TransportID
	}
	return "unknown"
}
