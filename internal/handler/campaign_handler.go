package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/Nex2i/dripiq-sub007/internal/errors"
	"github.com/Nex2i/dripiq-sub007/internal/plan"
	"github.com/Nex2i/dripiq-sub007/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service *service.CampaignService
}

// CreateCampaign handles creating a new campaign with its plan graph
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string    `json:"tenant_id"`
		Name     string    `json:"name"`
		Plan     plan.Plan `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.TenantID == "" || body.Name == "" {
		http.Error(w, "tenant_id and name are required", http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.CreateCampaign(body.TenantID, body.Name, body.Plan)
	if err != nil {
		http.Error(w, "failed to create campaign: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

// ListCampaigns returns a paginated list of campaigns for a tenant
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	tenantID := r.URL.Query().Get("tenant_id")
	status := r.URL.Query().Get("status")

	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	campaigns, pagination, err := h.Service.ListCampaigns(tenantID, page, pageSize, status)
	if err != nil {
		http.Error(w, "failed to fetch campaigns: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

// GetCampaign returns one campaign with its engagement stats
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// EnrollContacts starts the campaign plan for the given contacts
func (h *CampaignHandler) EnrollContacts(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactIDs []int `json:"contact_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.Service.EnrollContacts(id, body.ContactIDs)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
