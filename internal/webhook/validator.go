package webhook

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseEvents decodes the raw body as a JSON array of provider events,
// keeping the original bytes of every element for archival. A non-array
// payload is a hard error; an empty array is reported separately so the
// gateway can answer 400 for both.
func ParseEvents(body []byte) ([]ProviderEvent, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("payload is not a JSON array: %w", err)
	}
	events := make([]ProviderEvent, 0, len(elements))
	for i, raw := range elements {
		var ev ProviderEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("⚠️ webhook event %d is not an object, dropping: %v", i, err)
			continue
		}
		ev.Raw = raw
		events = append(events, ev)
	}
	return events, nil
}

// ValidateEvents normalizes a parsed batch. Validation is per-element and
// tolerant: one bad event never aborts its siblings, and the caller treats
// an all-dropped batch as the only failure case.
func ValidateEvents(events []ProviderEvent) []ValidatedEvent {
	validated := make([]ValidatedEvent, 0, len(events))
	for i, ev := range events {
		v, ok := validateEvent(i, ev)
		if !ok {
			continue
		}
		validated = append(validated, v)
	}
	return validated
}

func validateEvent(index int, ev ProviderEvent) (ValidatedEvent, bool) {
	eventName := strings.ToLower(strings.TrimSpace(ev.Event))
	if eventName == "" {
		log.Printf("⚠️ webhook event %d has no event type, dropping", index)
		return ValidatedEvent{}, false
	}
	if ignoredEventTypes[eventName] {
		// housekeeping event, not worth a log line
		return ValidatedEvent{}, false
	}
	eventType, ok := providerEventTypes[eventName]
	if !ok {
		log.Printf("⚠️ webhook event %d has unrecognized type %q, dropping", index, eventName)
		return ValidatedEvent{}, false
	}

	if !validEmail(ev.Email) {
		log.Printf("⚠️ webhook event %d (%s) has invalid recipient %q, dropping", index, eventName, ev.Email)
		return ValidatedEvent{}, false
	}
	if ev.Timestamp <= 0 {
		log.Printf("⚠️ webhook event %d (%s) has invalid timestamp %d, dropping", index, eventName, ev.Timestamp)
		return ValidatedEvent{}, false
	}

	providerEventID := strings.TrimSpace(ev.ProviderEventID)
	if providerEventID == "" {
		// synthesize a dedup key so downstream logic always has one to
		// check; retries of this exact payload will not dedup, which beats
		// dropping the event
		providerEventID = synthesizeEventID()
	}

	return ValidatedEvent{
		Type:              eventType,
		Email:             ev.Email,
		OccurredAt:        time.Unix(ev.Timestamp, 0).UTC(),
		TenantID:          strings.TrimSpace(ev.TenantID),
		ProviderEventID:   providerEventID,
		ProviderMessageID: strings.TrimSpace(ev.ProviderMessageID),
		TransportID:       strings.TrimSpace(ev.TransportID),
		OutboundMessageID: ev.OutboundMessageID,
		Raw:               ev.Raw,
	}, true
}

func synthesizeEventID() string {
	return fmt.Sprintf("generated_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// validEmail is a structural check, not deliverability validation.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return false
	}
	return true
}

// TenantID returns the first tenant id carried by any event in the batch.
// The batch is rejected upstream when none is present.
func TenantID(events []ValidatedEvent) (string, bool) {
	for _, ev := range events {
		if ev.TenantID != "" {
			return ev.TenantID, true
		}
	}
	return "", false
}
