package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/Nex2i/dripiq-sub007/internal/model"
)

type OutboundMessageRepositoryInterface interface {
	Create(msg *model.OutboundMessage) error
	GetByID(id int) (*model.OutboundMessage, error)
	GetByCampaignAndNode(contactCampaignID int, nodeID string) (*model.OutboundMessage, error)
	UpdateStatus(id int, status, lastError string) error
	ListByIDs(tenantID string, ids []int) ([]*model.OutboundMessage, error)
}

type OutboundMessageRepository struct {
	DB *sql.DB
}

// Create inserts a new outbound message into the database and returns the created ID
func (r *OutboundMessageRepository) Create(msg *model.OutboundMessage) error {
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = "pending"
	}

	query := `
        INSERT INTO outbound_messages
        (tenant_id, contact_campaign_id, contact_id, node_id, status, provider_message_id, last_error, retry_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		msg.TenantID, msg.ContactCampaignID, msg.ContactID, msg.NodeID,
		msg.Status, msg.ProviderMessageID, msg.LastError, msg.RetryCount,
		msg.CreatedAt, msg.UpdatedAt,
	).Scan(&msg.ID)
}

// GetByID fetches an outbound message by its ID
func (r *OutboundMessageRepository) GetByID(id int) (*model.OutboundMessage, error) {
	query := `
        SELECT id, tenant_id, contact_campaign_id, contact_id, node_id, status, provider_message_id, last_error, retry_count, created_at, updated_at
        FROM outbound_messages
        WHERE id=$1
    `
	var msg model.OutboundMessage
	err := r.DB.QueryRow(query, id).Scan(
		&msg.ID, &msg.TenantID, &msg.ContactCampaignID, &msg.ContactID,
		&msg.NodeID, &msg.Status, &msg.ProviderMessageID, &msg.LastError,
		&msg.RetryCount, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetByCampaignAndNode supports idempotent sends: one message per contact
// campaign per plan node.
func (r *OutboundMessageRepository) GetByCampaignAndNode(contactCampaignID int, nodeID string) (*model.OutboundMessage, error) {
	query := `
        SELECT id, tenant_id, contact_campaign_id, contact_id, node_id, status, provider_message_id, last_error, retry_count, created_at, updated_at
        FROM outbound_messages
        WHERE contact_campaign_id=$1 AND node_id=$2
    `
	var msg model.OutboundMessage
	err := r.DB.QueryRow(query, contactCampaignID, nodeID).Scan(
		&msg.ID, &msg.TenantID, &msg.ContactCampaignID, &msg.ContactID,
		&msg.NodeID, &msg.Status, &msg.ProviderMessageID, &msg.LastError,
		&msg.RetryCount, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *OutboundMessageRepository) UpdateStatus(id int, status, lastError string) error {
	query := `UPDATE outbound_messages SET status=$1, last_error=$2, retry_count=retry_count+1, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, status, lastError, id)
	return err
}

// ListByIDs bulk-fetches outbound messages in one query.
func (r *OutboundMessageRepository) ListByIDs(tenantID string, ids []int) ([]*model.OutboundMessage, error) {
	if len(ids) == 0 {
		return []*model.OutboundMessage{}, nil
	}
	query := `
        SELECT id, tenant_id, contact_campaign_id, contact_id, node_id, status, provider_message_id, last_error, retry_count, created_at, updated_at
        FROM outbound_messages
        WHERE tenant_id=$1 AND id = ANY($2)
    `
	rows, err := r.DB.Query(query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.OutboundMessage{}
	for rows.Next() {
		msg := &model.OutboundMessage{}
		if err := rows.Scan(
			&msg.ID, &msg.TenantID, &msg.ContactCampaignID, &msg.ContactID,
			&msg.NodeID, &msg.Status, &msg.ProviderMessageID, &msg.LastError,
			&msg.RetryCount, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

var _ OutboundMessageRepositoryInterface = (*OutboundMessageRepository)(nil)
