package service

import (
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/Nex2i/dripiq-sub007/internal/errors"
	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

// recordParallelism bounds the fan-out when parallel recording is enabled.
const recordParallelism = 8

// ProcessResult is the aggregate outcome of one webhook delivery, returned
// to the provider as the response body.
type ProcessResult struct {
	Success           bool     `json:"success"`
	WebhookDeliveryID int      `json:"webhookDeliveryId"`
	TotalEvents       int      `json:"totalEvents"`
	SuccessfulEvents  int      `json:"successfulEvents"`
	FailedEvents      int      `json:"failedEvents"`
	SkippedEvents     int      `json:"skippedEvents"`
	Errors            []string `json:"errors"`
}

// WebhookService orchestrates one inbound delivery: archive the raw batch,
// record each event, then resolve campaign transitions in bulk.
type WebhookService struct {
	RawDeliveries    repository.RawDeliveryRepositoryInterface
	Events           repository.MessageEventRepositoryInterface
	Outbound         repository.OutboundMessageRepositoryInterface
	ContactCampaigns repository.ContactCampaignRepositoryInterface
	Recorder         *EventRecorder
	Executor         *PlanExecutor

	ParallelEnabled bool
}

// ProcessWebhook handles a verified, validated batch. body is the exact
// payload received on the wire; the archive keeps it whole, including events
// the validator dropped. Tenant resolution and the archive write are the only
// hard failure points; past the archive, individual event failures degrade
// the delivery to partial_failure without discarding siblings, and transition
// failures never reach the caller.
func (s *WebhookService) ProcessWebhook(provider, signature string, body []byte, events []webhook.ValidatedEvent) (*ProcessResult, error) {
	if len(events) == 0 {
		return nil, appErrors.ErrNoRecordableEvents
	}

	tenantID, ok := webhook.TenantID(events)
	if !ok {
		return nil, appErrors.ErrMissingTenantID
	}

	delivery, err := s.archiveDelivery(tenantID, provider, signature, body, events)
	if err != nil {
		return nil, fmt.Errorf("failed to archive delivery: %w", err)
	}

	outcomes := s.recordEvents(tenantID, events)

	result := &ProcessResult{
		WebhookDeliveryID: delivery.ID,
		TotalEvents:       len(events),
		Errors:            []string{},
	}
	recordedIDs := []int{}
	for i, outcome := range outcomes {
		switch outcome.Status {
		case RecordStatusRecorded:
			result.SuccessfulEvents++
			recordedIDs = append(recordedIDs, outcome.Event.ID)
		case RecordStatusSkipped:
			result.SkippedEvents++
		case RecordStatusFailed:
			result.FailedEvents++
			result.Errors = append(result.Errors, fmt.Sprintf("event %d: %s", i, outcome.Reason))
		}
	}
	result.Success = result.FailedEvents == 0

	status := model.DeliveryProcessed
	if result.FailedEvents > 0 {
		status = model.DeliveryPartialFailure
	}
	if err := s.RawDeliveries.UpdateStatus(delivery.ID, status); err != nil {
		log.Printf("⚠️ failed to update delivery %d status: %v", delivery.ID, err)
	}

	// transitions run strictly after all recording; the webhook response no
	// longer depends on them
	s.processBatchTransitions(tenantID, recordedIDs)

	return result, nil
}

// archiveDelivery writes the original payload bytes before any event-level
// processing. Archiving the wire bytes rather than the validated events keeps
// dropped elements auditable, which is what the archive is for when the
// validator misclassifies a new provider type. Classification is the single
// event's type, or "batch"; the correlated message id is only unambiguous in
// the single-event case.
func (s *WebhookService) archiveDelivery(tenantID, provider, signature string, body []byte, events []webhook.ValidatedEvent) (*model.RawDelivery, error) {
	eventType := "batch"
	messageID := ""
	if len(events) == 1 {
		eventType = string(events[0].Type)
		messageID = DeriveMessageID(events[0])
	}

	delivery := &model.RawDelivery{
		TenantID:  tenantID,
		Provider:  provider,
		EventType: eventType,
		MessageID: messageID,
		Payload:   body,
		Signature: signature,
		Status:    model.DeliveryReceived,
	}
	if err := s.RawDeliveries.Create(delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

// recordEvents runs the recorder over the batch, sequentially in payload
// order or with bounded parallel fan-out. Parallel mode settles all events:
// workers never return an error, so one failure cannot cancel siblings.
func (s *WebhookService) recordEvents(tenantID string, events []webhook.ValidatedEvent) []RecordOutcome {
	outcomes := make([]RecordOutcome, len(events))

	if !s.ParallelEnabled {
		for i, ev := range events {
			outcomes[i] = s.Recorder.Record(tenantID, ev)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(recordParallelism)
	for i, ev := range events {
		i, ev := i, ev
		g.Go(func() error {
			outcomes[i] = s.Recorder.Record(tenantID, ev)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// processBatchTransitions is the bulk transition path: three bounded
// queries build in-memory maps, then each event resolves against them with
// no further I/O. Every missing lookup is a legitimate state (for example a
// message sent outside any campaign) and is skipped silently; errors are
// logged, never re-thrown, since the webhook has already been accepted.
func (s *WebhookService) processBatchTransitions(tenantID string, eventIDs []int) {
	if len(eventIDs) == 0 {
		return
	}

	events, err := s.Events.ListByIDs(tenantID, eventIDs)
	if err != nil {
		log.Printf("⚠️ batch transitions: failed to fetch message events: %v", err)
		return
	}
	eventsByID := make(map[int]*model.MessageEvent, len(events))
	outboundIDs := []int{}
	seenOutbound := map[int]bool{}
	for _, ev := range events {
		eventsByID[ev.ID] = ev
		if id, ok := ev.OutboundMessageID(); ok && !seenOutbound[id] {
			seenOutbound[id] = true
			outboundIDs = append(outboundIDs, id)
		}
	}

	messages, err := s.Outbound.ListByIDs(tenantID, outboundIDs)
	if err != nil {
		log.Printf("⚠️ batch transitions: failed to fetch outbound messages: %v", err)
		return
	}
	messagesByID := make(map[int]*model.OutboundMessage, len(messages))
	campaignIDs := []int{}
	seenCampaigns := map[int]bool{}
	for _, msg := range messages {
		messagesByID[msg.ID] = msg
		if !seenCampaigns[msg.ContactCampaignID] {
			seenCampaigns[msg.ContactCampaignID] = true
			campaignIDs = append(campaignIDs, msg.ContactCampaignID)
		}
	}

	campaigns, err := s.ContactCampaigns.ListByIDs(tenantID, campaignIDs)
	if err != nil {
		log.Printf("⚠️ batch transitions: failed to fetch contact campaigns: %v", err)
		return
	}
	campaignsByID := make(map[int]*model.ContactCampaign, len(campaigns))
	for _, cc := range campaigns {
		campaignsByID[cc.ID] = cc
	}

	// pure resolution pass over the maps
	for _, eventID := range eventIDs {
		ev, ok := eventsByID[eventID]
		if !ok {
			log.Printf("batch transitions: message event %d not found, skipping", eventID)
			continue
		}
		outboundID, ok := ev.OutboundMessageID()
		if !ok {
			continue // event not tied to one of our outbound messages
		}
		msg, ok := messagesByID[outboundID]
		if !ok {
			continue // message sent outside this subsystem's view
		}
		cc, ok := campaignsByID[msg.ContactCampaignID]
		if !ok || !cc.CanTransition() {
			continue // campaign missing, inactive or inert
		}
		if err := s.Executor.Apply(cc, webhook.EventType(ev.EventType), ev.ID); err != nil {
			log.Printf("⚠️ transition failed for contact campaign %d on event %d: %v", cc.ID, ev.ID, err)
		}
	}
}
