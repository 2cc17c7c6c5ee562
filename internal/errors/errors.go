package appErrors

import (
	"errors"
	"fmt"
)

// Request-terminal webhook errors. Anything here means no event-level
// processing happened; the handler maps signature failures to 401 and the
// rest to 400.
var (
	ErrSignatureInvalid   = errors.New("webhook signature verification failed")
	ErrMalformedPayload   = errors.New("webhook payload must be a JSON array")
	ErrEmptyPayload       = errors.New("webhook payload contains no events")
	ErrNoRecordableEvents = errors.New("no events in the batch passed validation")
	ErrMissingTenantID    = errors.New("no event in the batch carries a tenant id")
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}
