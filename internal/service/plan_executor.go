package service

import (
	"log"
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
	"github.com/Nex2i/dripiq-sub007/internal/queue"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

// CampaignSendsTopic is the queue the worker consumes next-step sends from.
const CampaignSendsTopic = "campaign_sends"

// SendJob is the queue payload for one next-step send.
type SendJob struct {
	OutboundMessageID int    `json:"outbound_message_id"`
	TenantID          string `json:"tenant_id"`
	EventRef          int    `json:"event_ref,omitempty"`
}

var sendPublishOptions = queue.PublishOptions{
	MaxAttempts: 3,
	Backoff:     30 * time.Second,
	DedupWindow: 10 * time.Minute,
}

// PlanExecutor advances one contact campaign through its plan graph in
// response to a recorded message event.
type PlanExecutor struct {
	ContactCampaigns repository.ContactCampaignRepositoryInterface
	Outbound         repository.OutboundMessageRepositoryInterface
	Queue            queue.Queue
}

// Apply evaluates the transition function for one event. Campaigns that are
// not active or hold no current node are inert; events with no matching edge
// are recorded no-ops. eventRef links the state change back to its causal
// message event. Every node move goes through a compare-and-swap on the
// expected current node; a lost race is a silent skip.
func (e *PlanExecutor) Apply(cc *model.ContactCampaign, eventType webhook.EventType, eventRef int) error {
	if !cc.CanTransition() {
		return nil
	}
	currentNode := *cc.CurrentNodeID

	edge := cc.Plan.Match(currentNode, string(eventType))
	if edge == nil {
		// no edge for this event; the event stays recorded for audit but
		// state does not move
		return nil
	}

	if edge.To == plan.StopTarget {
		moved, err := e.ContactCampaigns.Stop(cc.ID, currentNode)
		if err != nil {
			return err
		}
		if moved {
			log.Printf("🛑 contact campaign %d stopped on %s (event %d)", cc.ID, eventType, eventRef)
			cc.Status = model.ContactCampaignStopped
			cc.CurrentNodeID = nil
		}
		return nil
	}

	target := cc.Plan.Node(edge.To)
	if target == nil {
		log.Printf("⚠️ contact campaign %d plan edge points at unknown node %q, skipping", cc.ID, edge.To)
		return nil
	}

	moved, err := e.ContactCampaigns.AdvanceNode(cc.ID, currentNode, target.ID)
	if err != nil {
		return err
	}
	if !moved {
		// another event already transitioned this campaign
		return nil
	}
	cc.CurrentNodeID = &target.ID
	log.Printf("➡️ contact campaign %d moved %s → %s on %s (event %d)", cc.ID, currentNode, target.ID, eventType, eventRef)

	if target.Type == plan.NodeSend {
		return e.scheduleSend(cc, target, eventRef)
	}
	// wait and timeout nodes park here; the external scheduler owns
	// time-based transitions
	return nil
}

// scheduleSend creates the pending outbound message for a send node and
// enqueues it. The create is idempotent per (contact campaign, node).
func (e *PlanExecutor) scheduleSend(cc *model.ContactCampaign, node *plan.Node, eventRef int) error {
	msg, err := e.Outbound.GetByCampaignAndNode(cc.ID, node.ID)
	if err != nil {
		return err
	}
	if msg == nil {
		msg = &model.OutboundMessage{
			TenantID:          cc.TenantID,
			ContactCampaignID: cc.ID,
			ContactID:         cc.ContactID,
			NodeID:            node.ID,
			Status:            "pending",
		}
		if err := e.Outbound.Create(msg); err != nil {
			return err
		}
	}

	job := SendJob{
		OutboundMessageID: msg.ID,
		TenantID:          cc.TenantID,
		EventRef:          eventRef,
	}
	if err := e.Queue.Publish(CampaignSendsTopic, job, sendPublishOptions); err != nil {
		return err
	}
	log.Printf("📩 queued send for contact campaign %d node %s (message %d)", cc.ID, node.ID, msg.ID)
	return nil
}
