package service

import (
	"fmt"
	"log"
	"time"

	"github.com/Nex2i/dripiq-sub007/internal/model"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
	"github.com/Nex2i/dripiq-sub007/internal/queue"
	"github.com/Nex2i/dripiq-sub007/internal/repository"
)

type CampaignService struct {
	CampaignRepo        repository.CampaignRepositoryInterface
	ContactRepo         repository.ContactRepositoryInterface
	ContactCampaignRepo repository.ContactCampaignRepositoryInterface
	OutboundRepo        repository.OutboundMessageRepositoryInterface
	Queue               queue.Queue
}

// Result struct for EnrollContacts
type EnrollResult struct {
	CampaignID         int   `json:"campaign_id"`
	ContactsEnrolled   int   `json:"contacts_enrolled"`
	MessagesQueued     int   `json:"messages_queued"`
	ContactCampaignIDs []int `json:"contact_campaign_ids"`
}

type CampaignDetails struct {
	ID        int            `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Plan      plan.Plan      `json:"plan"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at"`
	Stats     map[string]int `json:"stats"`
}

func (s *CampaignService) CreateCampaign(tenantID, name string, p plan.Plan) (*model.Campaign, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &model.Campaign{
		TenantID: tenantID,
		Name:     name,
		Status:   "draft",
		Plan:     p,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// EnrollContacts starts the plan for each contact: an active ContactCampaign
// parked at the start node with the plan snapshotted, plus the first send if
// the start node is a send node. Enrollment is idempotent per contact.
func (s *CampaignService) EnrollContacts(campaignID int, contactIDs []int) (*EnrollResult, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.Status != "draft" && campaign.Status != "active" {
		return nil, fmt.Errorf("campaign cannot enroll contacts in status: %s", campaign.Status)
	}

	result := &EnrollResult{
		CampaignID:         campaignID,
		ContactCampaignIDs: []int{},
	}

	startNode := campaign.Plan.Node(campaign.Plan.StartNodeID)
	if startNode == nil {
		return nil, fmt.Errorf("campaign %d has no start node", campaignID)
	}

	for _, contactID := range contactIDs {
		contact, err := s.ContactRepo.GetByID(contactID)
		if err != nil {
			log.Println("⚠️ failed to fetch contact:", err)
			continue
		}
		if contact == nil {
			log.Println("⚠️ contact not found:", contactID)
			continue
		}

		cc, err := s.ContactCampaignRepo.GetByCampaignAndContact(campaignID, contactID)
		if err != nil {
			log.Println("⚠️ failed to check existing enrollment:", err)
			continue
		}
		if cc == nil {
			startID := campaign.Plan.StartNodeID
			cc = &model.ContactCampaign{
				TenantID:      campaign.TenantID,
				CampaignID:    campaignID,
				ContactID:     contactID,
				Status:        model.ContactCampaignActive,
				CurrentNodeID: &startID,
				Plan:          campaign.Plan,
			}
			if err := s.ContactCampaignRepo.Create(cc); err != nil {
				log.Println("⚠️ failed to enroll contact", contactID, ":", err)
				continue
			}
			result.ContactsEnrolled++
		}
		result.ContactCampaignIDs = append(result.ContactCampaignIDs, cc.ID)

		if startNode.Type != plan.NodeSend {
			continue
		}

		msg, err := s.OutboundRepo.GetByCampaignAndNode(cc.ID, startNode.ID)
		if err != nil {
			log.Println("⚠️ failed to check existing outbound message:", err)
			continue
		}
		if msg == nil {
			msg = &model.OutboundMessage{
				TenantID:          campaign.TenantID,
				ContactCampaignID: cc.ID,
				ContactID:         contactID,
				NodeID:            startNode.ID,
				Status:            "pending",
			}
			if err := s.OutboundRepo.Create(msg); err != nil {
				log.Println("⚠️ failed to create outbound message:", err)
				continue
			}
		}

		job := SendJob{OutboundMessageID: msg.ID, TenantID: campaign.TenantID}
		if err := s.Queue.Publish(CampaignSendsTopic, job, sendPublishOptions); err != nil {
			log.Println("⚠️ failed to enqueue message ID", msg.ID, ":", err)
			continue
		}
		result.MessagesQueued++
	}

	if campaign.Status != "active" {
		if err := s.CampaignRepo.UpdateStatus(campaignID, "active"); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(tenantID string, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(tenantID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats fetches a campaign and its engagement counts.
func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.CampaignRepo.GetEngagementStats(campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		ID:        campaign.ID,
		TenantID:  campaign.TenantID,
		Name:      campaign.Name,
		Status:    campaign.Status,
		Plan:      campaign.Plan,
		CreatedAt: campaign.CreatedAt,
		UpdatedAt: campaign.UpdatedAt,
		Stats:     stats,
	}, nil
}
