package repository

import (
	"database/sql"
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/model"
)

type RawDeliveryRepositoryInterface interface {
	Create(d *model.RawDelivery) error
	UpdateStatus(id int, status string) error
	GetByID(id int) (*model.RawDelivery, error)
}

type RawDeliveryRepository struct {
	DB *sql.DB
}

func (r *RawDeliveryRepository) Create(d *model.RawDelivery) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = model.DeliveryReceived
	}
	query := `
        INSERT INTO raw_deliveries (tenant_id, provider, event_type, message_id, payload, signature, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		d.TenantID, d.Provider, d.EventType, d.MessageID,
		d.Payload, d.Signature, d.Status, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
}

func (r *RawDeliveryRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE raw_deliveries SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

func (r *RawDeliveryRepository) GetByID(id int) (*model.RawDelivery, error) {
	query := `
        SELECT id, tenant_id, provider, event_type, message_id, payload, signature, status, created_at, updated_at
        FROM raw_deliveries WHERE id=$1
    `
	var d model.RawDelivery
	err := r.DB.QueryRow(query, id).Scan(
		&d.ID, &d.TenantID, &d.Provider, &d.EventType, &d.MessageID,
		&d.Payload, &d.Signature, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

var _ RawDeliveryRepositoryInterface = (*RawDeliveryRepository)(nil)
