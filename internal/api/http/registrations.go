package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/enrollment"
)

// RegistrationHandler serves the enrollment endpoints
type RegistrationHandler struct {
	service *enrollment.Service
	logger  ports.Logger
}

// NewRegistrationHandler creates a registration handler
func NewRegistrationHandler(service *enrollment.Service, logger ports.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: service, logger: logger}
}

type createRegistrationRequest struct {
	UserID        string           `json:"userId"`
	SeasonID      string           `json:"seasonId"`
	BillingType   string           `json:"billingType"`
	Installments  int              `json:"installments"`
	CategoryIDs   []string         `json:"categoryIds"`
	StageIDs      []string         `json:"stageIds"`
	TotalOverride *decimal.Decimal `json:"totalOverride"`
	FirstDueDate  string           `json:"firstDueDate"`
}

type registrationResponse struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"userId"`
	SeasonID        string                  `json:"seasonId"`
	LifecycleStatus models.LifecycleStatus  `json:"lifecycleStatus"`
	PaymentStatus   models.PaymentStatus    `json:"paymentStatus"`
	Amount          decimal.Decimal         `json:"amount"`
	Installments    int                     `json:"installments"`
	Payment         *enrollment.PaymentView `json:"payment,omitempty"`
}

func toRegistrationResponse(reg *models.Registration, payment *enrollment.PaymentView) registrationResponse {
	return registrationResponse{
		ID:              reg.ID,
		UserID:          reg.UserID,
		SeasonID:        reg.SeasonID,
		LifecycleStatus: reg.LifecycleStatus,
		PaymentStatus:   reg.PaymentStatus,
		Amount:          reg.Amount,
		Installments:    reg.Installments,
		Payment:         payment,
	}
}

// Create handles POST /registrations
func (h *RegistrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}
	if req.UserID == "" || req.SeasonID == "" {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "userId and seasonId are required"))
		return
	}

	reg, payment, err := h.service.CreateRegistration(r.Context(), enrollment.CreateRegistrationRequest{
		UserID:        req.UserID,
		SeasonID:      req.SeasonID,
		BillingType:   models.BillingType(req.BillingType),
		Installments:  req.Installments,
		CategoryIDs:   req.CategoryIDs,
		StageIDs:      req.StageIDs,
		TotalOverride: req.TotalOverride,
		FirstDueDate:  req.FirstDueDate,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRegistrationResponse(reg, payment))
}

type adminRegistrationRequest struct {
	UserID      string          `json:"userId"`
	SeasonID    string          `json:"seasonId"`
	CategoryIDs []string        `json:"categoryIds"`
	StageIDs    []string        `json:"stageIds"`
	Exempt      bool            `json:"exempt"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateAdmin handles POST /registrations/admin
func (h *RegistrationHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}
	if req.UserID == "" || req.SeasonID == "" {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "userId and seasonId are required"))
		return
	}

	reg, err := h.service.CreateAdminRegistration(r.Context(), enrollment.AdminRegistrationRequest{
		UserID:      req.UserID,
		SeasonID:    req.SeasonID,
		CategoryIDs: req.CategoryIDs,
		StageIDs:    req.StageIDs,
		Exempt:      req.Exempt,
		Amount:      req.Amount,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRegistrationResponse(reg, nil))
}

type addStagesRequest struct {
	StageIDs      []string         `json:"stageIds"`
	BillingType   string           `json:"billingType"`
	FirstDueDate  string           `json:"firstDueDate"`
	TotalOverride *decimal.Decimal `json:"totalOverride"`
}

// AddStages handles POST /registrations/{id}/stages
func (h *RegistrationHandler) AddStages(w http.ResponseWriter, r *http.Request) {
	var req addStagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	reg, payment, err := h.service.AddStagesToRegistration(r.Context(), enrollment.AddStagesRequest{
		RegistrationID: chi.URLParam(r, "id"),
		StageIDs:       req.StageIDs,
		BillingType:    models.BillingType(req.BillingType),
		FirstDueDate:   req.FirstDueDate,
		TotalOverride:  req.TotalOverride,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationResponse(reg, payment))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles DELETE /registrations/{id}
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.CancelRegistration(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPayments handles GET /registrations/{id}/payments
func (h *RegistrationHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetPaymentData(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Sync handles POST /registrations/{id}/sync
func (h *RegistrationHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.SyncPaymentStatus(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	view, err := h.service.GetPaymentData(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ConfirmDirect handles POST /registrations/{id}/confirm-direct
func (h *RegistrationHandler) ConfirmDirect(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConfirmDirectPayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
