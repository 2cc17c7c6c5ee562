package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
)

type ContactCampaignRepositoryInterface interface {
	Create(cc *model.ContactCampaign) error
	GetByID(id int) (*model.ContactCampaign, error)
	GetByCampaignAndContact(campaignID, contactID int) (*model.ContactCampaign, error)
	ListByIDs(tenantID string, ids []int) ([]*model.ContactCampaign, error)
	AdvanceNode(id int, fromNodeID, toNodeID string) (bool, error)
	Stop(id int, fromNodeID string) (bool, error)
}

type ContactCampaignRepository struct {
	DB *sql.DB
}

const contactCampaignColumns = `id, tenant_id, campaign_id, contact_id, status, current_node_id, plan, created_at, updated_at`

func (r *ContactCampaignRepository) Create(cc *model.ContactCampaign) error {
	now := time.Now()
	cc.CreatedAt = now
	cc.UpdatedAt = now
	if cc.Status == "" {
		cc.Status = model.ContactCampaignActive
	}
	planDoc, err := json.Marshal(cc.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	query := `
        INSERT INTO contact_campaigns (tenant_id, campaign_id, contact_id, status, current_node_id, plan, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		cc.TenantID, cc.CampaignID, cc.ContactID, cc.Status,
		cc.CurrentNodeID, planDoc, cc.CreatedAt, cc.UpdatedAt,
	).Scan(&cc.ID)
}

func (r *ContactCampaignRepository) GetByID(id int) (*model.ContactCampaign, error) {
	query := `SELECT ` + contactCampaignColumns + ` FROM contact_campaigns WHERE id=$1`
	cc, err := scanContactCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cc, nil
}

func (r *ContactCampaignRepository) GetByCampaignAndContact(campaignID, contactID int) (*model.ContactCampaign, error) {
	query := `SELECT ` + contactCampaignColumns + ` FROM contact_campaigns WHERE campaign_id=$1 AND contact_id=$2`
	cc, err := scanContactCampaign(r.DB.QueryRow(query, campaignID, contactID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cc, nil
}

// ListByIDs bulk-fetches contact campaigns in one query.
func (r *ContactCampaignRepository) ListByIDs(tenantID string, ids []int) ([]*model.ContactCampaign, error) {
	if len(ids) == 0 {
		return []*model.ContactCampaign{}, nil
	}
	query := `SELECT ` + contactCampaignColumns + ` FROM contact_campaigns WHERE tenant_id=$1 AND id = ANY($2)`
	rows, err := r.DB.Query(query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.ContactCampaign{}
	for rows.Next() {
		cc, err := scanContactCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, cc)
	}
	return campaigns, rows.Err()
}

// AdvanceNode moves current_node_id with a compare-and-swap on the expected
// node, so two events racing on stale state cannot both transition. Returns
// false when the row was not in the expected state.
func (r *ContactCampaignRepository) AdvanceNode(id int, fromNodeID, toNodeID string) (bool, error) {
	query := `
        UPDATE contact_campaigns
        SET current_node_id=$1, updated_at=NOW()
        WHERE id=$2 AND current_node_id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, toNodeID, id, fromNodeID, model.ContactCampaignActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Stop terminates the campaign, guarded by the same compare-and-swap.
func (r *ContactCampaignRepository) Stop(id int, fromNodeID string) (bool, error) {
	query := `
        UPDATE contact_campaigns
        SET status=$1, current_node_id=NULL, updated_at=NOW()
        WHERE id=$2 AND current_node_id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.ContactCampaignStopped, id, fromNodeID, model.ContactCampaignActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContactCampaign(row rowScanner) (*model.ContactCampaign, error) {
	var cc model.ContactCampaign
	var planDoc []byte
	if err := row.Scan(
		&cc.ID, &cc.TenantID, &cc.CampaignID, &cc.ContactID, &cc.Status,
		&cc.CurrentNodeID, &planDoc, &cc.CreatedAt, &cc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(planDoc) > 0 {
		var p plan.Plan
		if err := json.Unmarshal(planDoc, &p); err != nil {
			return nil, fmt.Errorf("contact campaign %d has an unreadable plan: %w", cc.ID, err)
		}
		cc.Plan = p
	}
	return &cc, nil
}

var _ ContactCampaignRepositoryInterface = (*ContactCampaignRepository)(nil)
