package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/Nex2i/dripiq-sub007/internal/model"
)

type MessageEventRepositoryInterface interface {
	Create(e *model.MessageEvent) error
	FindByProviderEventID(tenantID, providerEventID string) (*model.MessageEvent, error)
	ListByIDs(tenantID string, ids []int) ([]*model.MessageEvent, error)
}

type MessageEventRepository struct {
	DB *sql.DB
}

func (r *MessageEventRepository) Create(e *model.MessageEvent) error {
	e.CreatedAt = time.Now()
	query := `
        INSERT INTO message_events (tenant_id, message_id, event_type, occurred_at, provider_event_id, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		e.TenantID, e.MessageID, e.EventType, e.OccurredAt,
		e.ProviderEventID, e.Payload, e.CreatedAt,
	).Scan(&e.ID)
}

// FindByProviderEventID is the dedup lookup. Not-found is (nil, nil).
func (r *MessageEventRepository) FindByProviderEventID(tenantID, providerEventID string) (*model.MessageEvent, error) {
	query := `
        SELECT id, tenant_id, message_id, event_type, occurred_at, provider_event_id, payload, created_at
        FROM message_events
        WHERE tenant_id=$1 AND provider_event_id=$2
    `
	var e model.MessageEvent
	err := r.DB.QueryRow(query, tenantID, providerEventID).Scan(
		&e.ID, &e.TenantID, &e.MessageID, &e.EventType,
		&e.OccurredAt, &e.ProviderEventID, &e.Payload, &e.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListByIDs bulk-fetches events in one query for the batch transition path.
func (r *MessageEventRepository) ListByIDs(tenantID string, ids []int) ([]*model.MessageEvent, error) {
	if len(ids) == 0 {
		return []*model.MessageEvent{}, nil
	}
	query := `
        SELECT id, tenant_id, message_id, event_type, occurred_at, provider_event_id, payload, created_at
        FROM message_events
        WHERE tenant_id=$1 AND id = ANY($2)
    `
	rows, err := r.DB.Query(query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*model.MessageEvent{}
	for rows.Next() {
		e := &model.MessageEvent{}
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.MessageID, &e.EventType,
			&e.OccurredAt, &e.ProviderEventID, &e.Payload, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ MessageEventRepositoryInterface = (*MessageEventRepository)(nil)
