package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/Nex2i/dripiq-sub007/internal/errors"
	"github.com/Nex2i/dripiq-sub007/internal/service"
	"github.com/Nex2i/dripiq-sub007/internal/webhook"
)

// Signature headers the provider sends with every delivery.
const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// WebhookHandler is the gateway's HTTP surface: verify, normalize, then
// hand the batch to the service.
type WebhookHandler struct {
	Verifier *webhook.Verifier
	Service  *service.WebhookService
	Enabled  bool
}

// HandleProviderEvents serves POST /webhooks/{provider}/events.
func (h *WebhookHandler) HandleProviderEvents(w http.ResponseWriter, r *http.Request) {
	if !h.Enabled {
		writeError(w, http.StatusNotFound, "webhooks are disabled")
		return
	}
	provider := chi.URLParam(r, "provider")

	// the signature covers the exact bytes received, so read before parsing
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	timestamp := r.Header.Get(TimestampHeader)
	if err := h.Verifier.Verify(signature, timestamp, body); err != nil {
		log.Printf("⚠️ webhook from %s rejected: %v", provider, err)
		writeError(w, http.StatusUnauthorized, appErrors.ErrSignatureInvalid.Error())
		return
	}

	events, err := webhook.ParseEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, appErrors.ErrMalformedPayload.Error())
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, appErrors.ErrEmptyPayload.Error())
		return
	}

	validated := webhook.ValidateEvents(events)
	if len(validated) == 0 {
		writeError(w, http.StatusBadRequest, appErrors.ErrNoRecordableEvents.Error())
		return
	}

	result, err := h.Service.ProcessWebhook(provider, signature, body, validated)
	if err != nil {
		if errors.Is(err, appErrors.ErrMissingTenantID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("⚠️ webhook processing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
