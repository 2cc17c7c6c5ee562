package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	appErrors "github.com/Nex2i/dripiq-sub007/internal/errors"
	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(tenantID string, offset, limit int, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	GetEngagementStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = "draft"
	}
	planDoc, err := json.Marshal(c.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	query := `
        INSERT INTO campaigns (tenant_id, name, status, plan, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.TenantID, c.Name, c.Status, planDoc, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, tenant_id, name, status, plan, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	var planDoc []byte
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &planDoc, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	if len(planDoc) > 0 {
		var p plan.Plan
		if err := json.Unmarshal(planDoc, &p); err != nil {
			return nil, fmt.Errorf("campaign %d has an unreadable plan: %w", id, err)
		}
		c.Plan = p
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(tenantID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, tenant_id, name, status, plan, created_at, updated_at FROM campaigns WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		var planDoc []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &planDoc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if len(planDoc) > 0 {
			var p plan.Plan
			if err := json.Unmarshal(planDoc, &p); err != nil {
				return nil, 0, fmt.Errorf("campaign %d has an unreadable plan: %w", c.ID, err)
			}
			c.Plan = p
		}
		campaigns = append(campaigns, c)
	}

	// Count total
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE tenant_id=$1`
	argsCount := []interface{}{tenantID}
	if status != "" {
		countQuery += " AND status=$2"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

// GetEngagementStats counts recorded message events per type across all of
// the campaign's contacts.
func (r *CampaignRepository) GetEngagementStats(campaignID int) (map[string]int, error) {
	query := `
        SELECT me.event_type, COUNT(*)
        FROM message_events me
        JOIN outbound_messages om ON om.id::text = me.message_id
        JOIN contact_campaigns cc ON cc.id = om.contact_campaign_id
        WHERE cc.campaign_id = $1
        GROUP BY me.event_type
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"delivered":    0,
		"bounced":      0,
		"opened":       0,
		"clicked":      0,
		"unsubscribed": 0,
	}
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats[eventType] = count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
