package model

import (
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/plan"
)

type Campaign struct {
	ID        int        `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Status    string     `db:"status" json:"status"`
	Plan      plan.Plan  `db:"plan" json:"plan"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
