package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/pkg/observability"
	"github.com/openracing/enrollment-service/pkg/resilience"
)

// HTTPDoer is the minimal http client surface the adapter needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds Asaas API configuration
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds every single gateway call
	Timeout time.Duration
	// Production enables the customer-upsert retry policy; sandbox
	// environments fail fast so integration mistakes surface immediately
	Production bool
}

// Client is a typed wrapper over the Asaas REST API. All responses are
// normalized at this boundary: callers see ports types and DomainErrors,
// never raw gateway payload shapes.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
	logger     ports.Logger
	metrics    *observability.Metrics
	backoff    resilience.BackoffStrategy
}

// NewClient creates a new Asaas client
func NewClient(cfg Config, httpClient HTTPDoer, logger ports.Logger, metrics *observability.Metrics) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
		if cfg.Production {
			cfg.Timeout = 30 * time.Second
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		backoff:    &resilience.FixedBackoff{Delay: 500 * time.Millisecond},
	}
}

// errorResponse is the gateway's machine-readable error envelope
type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// do performs one request and returns the raw response body on success.
// Gateway failures come back as DomainErrors: 5xx and transport errors
// are transient, 4xx carry the gateway's code and description.
func (c *Client) do(ctx context.Context, operation, method, path string, request interface{}) ([]byte, error) {
	var payload []byte
	var err error
	if request != nil {
		payload, err = json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.cfg.APIKey)

	c.logger.Debug("asaas request",
		ports.String("operation", operation),
		ports.String("method", method),
		ports.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countRequest(operation, "transient_error")
		return nil, domain.WrapError(domain.ErrorCodeGatewayTransient, "failed to reach payment gateway", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countRequest(operation, "transient_error")
		return nil, domain.WrapError(domain.ErrorCodeGatewayTransient, "failed to read gateway response", err)
	}

	if resp.StatusCode >= 500 {
		c.countRequest(operation, "transient_error")
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayTransient, "payment gateway error").
			WithDetail("status", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		c.countRequest(operation, "semantic_error")
		return nil, c.semanticError(body, resp.StatusCode)
	}

	c.countRequest(operation, "ok")
	return body, nil
}

// semanticError extracts the gateway's machine-readable code and
// description, falling back to a generic message when the envelope is
// missing
func (c *Client) semanticError(body []byte, status int) error {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		return domain.NewDomainError(domain.ErrorCodeGatewaySemantic, first.Description).
			WithDetail("gateway_code", first.Code).
			WithDetail("status", status)
	}
	return domain.NewDomainError(domain.ErrorCodeGatewaySemantic, "payment gateway rejected the request").
		WithDetail("status", status)
}

// decodeObject unmarshals a JSON object response, surfacing the known
// gateway quirk of answering with an empty-list shape where an object
// was expected as a distinguishable error
func decodeObject(body []byte, out interface{}) error {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		return domain.NewDomainError(domain.ErrorCodeGatewayEmptyResponse,
			"gateway returned a list shape where an object was expected")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal gateway response: %w", err)
	}
	return nil
}

func (c *Client) countRequest(operation, result string) {
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(operation, result).Inc()
	}
}
