package model

import "time"

type OutboundMessage struct {
	ID                int       `db:"id" json:"id"`
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	ContactCampaignID int       `db:"contact_campaign_id" json:"contact_campaign_id"`
	ContactID         int       `db:"contact_id" json:"contact_id"`
	NodeID            string    `db:"node_id" json:"node_id"`
	Status            string    `db:"status" json:"status"` // pending, sent, failed
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastError         string    `db:"last_error" json:"last_error,omitempty"`
	RetryCount        int       `db:"retry_count" json:"retry_count"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
