package asaas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/pkg/resilience"
)

// customerUpsertAttempts bounds the retry loop in production-like environments
const customerUpsertAttempts = 3

// NormalizeTaxDocument strips non-digits and validates the digit count:
// 11 for a personal document, 14 for a company one. Anything else is a
// validation error, never a silent pass-through.
func NormalizeTaxDocument(doc string) (string, error) {
	var b strings.Builder
	for _, r := range doc {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 11 && len(digits) != 14 {
		// fresh error per call: writing into a shared sentinel's Details map
		// races when requests validate concurrently
		return "", domain.NewDomainError(domain.ErrorCodeValidationInvalidDocument,
			"tax document must have 11 or 14 digits").WithDetail("digits", len(digits))
	}
	return digits, nil
}

// UpsertCustomer searches the gateway by tax document and either updates
// the existing billing customer or creates a new one. In production-like
// environments the whole upsert retries up to three times on transient
// failures with a fixed backoff; sandbox fails fast.
func (c *Client) UpsertCustomer(ctx context.Context, profile ports.CustomerProfile) (*ports.CustomerRef, error) {
	doc, err := NormalizeTaxDocument(profile.TaxDocument)
	if err != nil {
		return nil, err
	}

	var ref *ports.CustomerRef
	attempts := 1
	if c.cfg.Production {
		attempts = customerUpsertAttempts
	}

	err = resilience.Retry(ctx, attempts, c.backoff, domain.IsGatewayTransient, func() error {
		var upsertErr error
		ref, upsertErr = c.upsertCustomerOnce(ctx, profile, doc)
		return upsertErr
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("gateway customer upserted",
		ports.String("customer_id", ref.ID),
		ports.String("external_ref", profile.ExternalRef))
	return ref, nil
}

func (c *Client) upsertCustomerOnce(ctx context.Context, profile ports.CustomerProfile, doc string) (*ports.CustomerRef, error) {
	existingID, err := c.findCustomerByDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	payload := customerPayload{
		Name:              profile.Name,
		Email:             profile.Email,
		Phone:             profile.Phone,
		CpfCnpj:           doc,
		ExternalReference: profile.ExternalRef,
	}

	var body []byte
	if existingID != "" {
		body, err = c.do(ctx, "update_customer", "POST", "/customers/"+existingID, payload)
	} else {
		body, err = c.do(ctx, "create_customer", "POST", "/customers", payload)
	}
	if err != nil {
		return nil, err
	}

	var created customerPayload
	if err := decodeObject(body, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayEmptyResponse,
			"gateway returned a customer without an id")
	}
	return &ports.CustomerRef{ID: created.ID}, nil
}

// findCustomerByDocument returns the gateway customer id registered under
// a tax document, or empty when none exists
func (c *Client) findCustomerByDocument(ctx context.Context, doc string) (string, error) {
	body, err := c.do(ctx, "search_customer", "GET", "/customers?cpfCnpj="+url.QueryEscape(doc), nil)
	if err != nil {
		return "", err
	}

	var list listEnvelope
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("unmarshal customer search: %w", err)
	}
	if len(list.Data) == 0 {
		return "", nil
	}

	var first customerPayload
	if err := json.Unmarshal(list.Data[0], &first); err != nil {
		return "", fmt.Errorf("unmarshal customer: %w", err)
	}
	return first.ID, nil
}
