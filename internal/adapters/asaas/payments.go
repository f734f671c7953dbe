package asaas

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// CreatePayment creates a single charge
func (c *Client) CreatePayment(ctx context.Context, spec ports.PaymentSpec) (*ports.PaymentRef, error) {
	req := createPaymentRequest{
		Customer:          spec.CustomerID,
		BillingType:       string(spec.BillingType),
		Value:             spec.Value.InexactFloat64(),
		DueDate:           spec.DueDate,
		Description:       spec.Description,
		ExternalReference: spec.ExternalRef,
		Split:             toSplitPayloads(spec.Split),
	}

	body, err := c.do(ctx, "create_payment", "POST", "/payments", req)
	if err != nil {
		return nil, err
	}

	var payload paymentPayload
	if err := decodeObject(body, &payload); err != nil {
		return nil, err
	}
	return toPaymentRef(payload, body), nil
}

// CreateInstallmentPlan creates a multi-charge plan; the individual
// installment charges are enumerated separately via ListInstallmentPayments
func (c *Client) CreateInstallmentPlan(ctx context.Context, spec ports.InstallmentPlanSpec) (*ports.PlanRef, error) {
	req := createInstallmentRequest{
		Customer:          spec.CustomerID,
		BillingType:       string(spec.BillingType),
		InstallmentCount:  spec.InstallmentCount,
		TotalValue:        spec.TotalValue.InexactFloat64(),
		DueDate:           spec.FirstDueDate,
		Description:       spec.Description,
		ExternalReference: spec.ExternalRef,
		Split:             toSplitPayloads(spec.Split),
	}

	body, err := c.do(ctx, "create_installment_plan", "POST", "/installments", req)
	if err != nil {
		return nil, err
	}

	var payload installmentPayload
	if err := decodeObject(body, &payload); err != nil {
		return nil, err
	}
	return &ports.PlanRef{ID: payload.ID, Raw: body}, nil
}

// ListInstallmentPayments enumerates a plan's charges ordered by
// installment number; the gateway may return them unordered
func (c *Client) ListInstallmentPayments(ctx context.Context, planID string) ([]*ports.PaymentRef, error) {
	body, err := c.do(ctx, "list_installment_payments", "GET", "/installments/"+planID+"/payments", nil)
	if err != nil {
		return nil, err
	}

	var list listEnvelope
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("unmarshal installment payments: %w", err)
	}

	refs := make([]*ports.PaymentRef, 0, len(list.Data))
	for _, raw := range list.Data {
		var payload paymentPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal installment payment: %w", err)
		}
		refs = append(refs, toPaymentRef(payload, raw))
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].InstallmentNumber < refs[j].InstallmentNumber
	})
	return refs, nil
}

// GetPayment retrieves a charge's current gateway state
func (c *Client) GetPayment(ctx context.Context, id string) (*ports.PaymentRef, error) {
	body, err := c.do(ctx, "get_payment", "GET", "/payments/"+id, nil)
	if err != nil {
		return nil, err
	}

	var payload paymentPayload
	if err := decodeObject(body, &payload); err != nil {
		return nil, err
	}
	return toPaymentRef(payload, body), nil
}

// CancelPayment stops a charge. Charges already paid are refunded;
// open ones are deleted gateway-side, which later arrives back as a
// payment-deleted webhook.
func (c *Client) CancelPayment(ctx context.Context, id string) (*ports.PaymentRef, error) {
	current, err := c.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if models.IsPaidChargeStatus(current.Status) {
		body, err := c.do(ctx, "refund_payment", "POST", "/payments/"+id+"/refund", nil)
		if err != nil {
			return nil, err
		}
		var payload paymentPayload
		if err := decodeObject(body, &payload); err != nil {
			return nil, err
		}
		return toPaymentRef(payload, body), nil
	}

	if _, err := c.do(ctx, "delete_payment", "DELETE", "/payments/"+id, nil); err != nil {
		return nil, err
	}
	return current, nil
}

// GetPixQrCode fetches the scannable PIX payload of a charge
func (c *Client) GetPixQrCode(ctx context.Context, id string) (*ports.PixQrCode, error) {
	body, err := c.do(ctx, "get_pix_qrcode", "GET", "/payments/"+id+"/pixQrCode", nil)
	if err != nil {
		return nil, err
	}

	var payload pixQrCodePayload
	if err := decodeObject(body, &payload); err != nil {
		return nil, err
	}
	return &ports.PixQrCode{
		EncodedImage:   payload.EncodedImage,
		Payload:        payload.Payload,
		ExpirationDate: payload.ExpirationDate,
	}, nil
}
