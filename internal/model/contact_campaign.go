package model

import (
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/plan"
)

// ContactCampaign statuses. Only active campaigns with a current node are
// eligible for plan transitions; everything else is inert.
const (
	ContactCampaignActive    = "active"
	ContactCampaignPaused    = "paused"
	ContactCampaignStopped   = "stopped"
	ContactCampaignCompleted = "completed"
)

// ContactCampaign is the live execution state of one contact walking one
// campaign's plan. The plan is snapshotted at enrollment so later campaign
// edits never move goalposts mid-sequence.
type ContactCampaign struct {
	ID            int       `db:"id" json:"id"`
	TenantID      string    `db:"tenant_id" json:"tenant_id"`
	CampaignID    int       `db:"campaign_id" json:"campaign_id"`
	ContactID     int       `db:"contact_id" json:"contact_id"`
	Status        string    `db:"status" json:"status"`
	CurrentNodeID *string   `db:"current_node_id" json:"current_node_id,omitempty"`
	Plan          plan.Plan `db:"plan" json:"plan"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether incoming events may move this campaign.
func (c *ContactCampaign) CanTransition() bool {
	return c.Status == ContactCampaignActive && c.CurrentNodeID != nil && *c.CurrentNodeID != ""
}
