package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/webhook"
)

// WebhookHandler receives gateway notifications. Once the payload
// parses it always answers 200: the gateway retries non-2xx responses,
// and a retry storm on a persistent processing error only amplifies the
// damage. Processing failures are logged and recovered through the
// manual sync path instead.
type WebhookHandler struct {
	ingestor *webhook.Ingestor
	logger   ports.Logger
	// accessToken, when set, must match the asaas-access-token header
	accessToken string
}

// NewWebhookHandler creates a webhook handler. An empty accessToken
// disables header verification.
func NewWebhookHandler(ingestor *webhook.Ingestor, logger ports.Logger, accessToken string) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger, accessToken: accessToken}
}

// Receive handles POST /webhooks/asaas
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.accessToken != "" {
		token := r.Header.Get("asaas-access-token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.accessToken)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var evt webhook.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		h.logger.Warn("unparseable webhook payload", ports.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.ingestor.Ingest(r.Context(), evt, body); err != nil {
		h.logger.Error("webhook processing failed",
			ports.String("event", evt.Event),
			ports.String("external_payment_id", evt.Payment.ID),
			ports.Err(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
