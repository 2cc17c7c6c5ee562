package repository

import (
	"database/sql"

	"github.com/Nex2i/dripiq-sub007/internal/model"
)

// ContactRepositoryInterface defines methods used by the enrollment service
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	ListByTenant(tenantID string) ([]model.Contact, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `
        SELECT id, tenant_id, email, first_name, last_name, title
        FROM contacts
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.TenantID, &c.Email, &c.FirstName, &c.LastName, &c.Title); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// ListByTenant fetches all of a tenant's contacts
func (r *ContactRepository) ListByTenant(tenantID string) ([]model.Contact, error) {
	query := `
        SELECT id, tenant_id, email, first_name, last_name, title
        FROM contacts
        WHERE tenant_id = $1
    `
	rows, err := r.DB.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Email, &c.FirstName, &c.LastName, &c.Title); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
