package asaas_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openracing/enrollment-service/internal/adapters/asaas"
	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/testutil/mocks"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *asaas.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return asaas.NewClient(asaas.Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, server.Client(), mocks.NopLogger{}, nil)
}

func TestNormalizeTaxDocument(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"formatted cpf", "123.456.789-01", "12345678901", false},
		{"plain cnpj", "12345678000190", "12345678000190", false},
		{"too short", "123456", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asaas.NormalizeTaxDocument(tt.in)
			if tt.wantErr {
				assert.Equal(t, domain.ErrorCodeValidationInvalidDocument, domain.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTaxDocument_ConcurrentInvalidDocuments(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := asaas.NormalizeTaxDocument("123")
			var domainErr *domain.DomainError
			if assert.ErrorAs(t, err, &domainErr) {
				assert.Equal(t, 3, domainErr.Details["digits"])
			}
		}()
	}
	wg.Wait()

	// each call carries its own detail payload
	_, shortErr := asaas.NormalizeTaxDocument("123")
	_, longErr := asaas.NormalizeTaxDocument("123456")
	var shortDomain, longDomain *domain.DomainError
	require.ErrorAs(t, shortErr, &shortDomain)
	require.ErrorAs(t, longErr, &longDomain)
	assert.Equal(t, 3, shortDomain.Details["digits"])
	assert.Equal(t, 6, longDomain.Details["digits"])
}

func TestUpsertCustomer_UpdatesExisting(t *testing.T) {
	var updatedPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("access_token"))
		switch {
		case r.Method == "GET" && r.URL.Path == "/customers":
			assert.Equal(t, "12345678901", r.URL.Query().Get("cpfCnpj"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "cus_existing"}},
			})
		case r.Method == "POST":
			updatedPath = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "cus_existing"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ref, err := client.UpsertCustomer(context.Background(), ports.CustomerProfile{
		Name:        "Ayrton Souza",
		TaxDocument: "123.456.789-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", ref.ID)
	assert.Equal(t, "/customers/cus_existing", updatedPath)
}

func TestUpsertCustomer_CreatesWhenAbsent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
		case r.Method == "POST" && r.URL.Path == "/customers":
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			assert.Equal(t, "12345678901", payload["cpfCnpj"])
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "cus_new"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ref, err := client.UpsertCustomer(context.Background(), ports.CustomerProfile{
		Name:        "Ayrton Souza",
		TaxDocument: "12345678901",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", ref.ID)
}

func TestUpsertCustomer_InvalidDocumentNeverHitsGateway(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.UpsertCustomer(context.Background(), ports.CustomerProfile{
		TaxDocument: "12345",
	})
	assert.Equal(t, domain.ErrorCodeValidationInvalidDocument, domain.GetErrorCode(err))
	assert.False(t, called)
}

func TestCreatePayment_EmptyListShapeIsError(t *testing.T) {
	// The gateway occasionally answers an object endpoint with an empty
	// list; that must surface as a typed error, not a zero-value charge.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	_, err := client.CreatePayment(context.Background(), ports.PaymentSpec{
		CustomerID:  "cus_1",
		BillingType: models.BillingPix,
		Value:       decimal.NewFromInt(100),
		DueDate:     "2026-09-03",
	})
	assert.Equal(t, domain.ErrorCodeGatewayEmptyResponse, domain.GetErrorCode(err))
}

func TestCreatePayment_SemanticErrorCarriesGatewayCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_value","description":"value must be positive"}]}`))
	})

	_, err := client.CreatePayment(context.Background(), ports.PaymentSpec{
		CustomerID:  "cus_1",
		BillingType: models.BillingPix,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewaySemantic, domain.GetErrorCode(err))
	assert.Contains(t, err.Error(), "value must be positive")
}

func TestCreatePayment_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreatePayment(context.Background(), ports.PaymentSpec{CustomerID: "cus_1"})
	assert.Equal(t, domain.ErrorCodeGatewayTransient, domain.GetErrorCode(err))
	assert.True(t, domain.IsGatewayTransient(err))
}

func TestListInstallmentPayments_SortsByInstallmentNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/installments/ins_1/payments", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[
			{"id":"pay_3","installment":"ins_1","installmentNumber":3,"billingType":"PIX","status":"PENDING","value":100,"dueDate":"2026-11-03"},
			{"id":"pay_1","installment":"ins_1","installmentNumber":1,"billingType":"PIX","status":"PENDING","value":100,"dueDate":"2026-09-03"},
			{"id":"pay_2","installment":"ins_1","installmentNumber":2,"billingType":"PIX","status":"PENDING","value":100,"dueDate":"2026-10-03"}
		]}`))
	})

	refs, err := client.ListInstallmentPayments(context.Background(), "ins_1")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "pay_1", refs[0].ID)
	assert.Equal(t, "pay_2", refs[1].ID)
	assert.Equal(t, "pay_3", refs[2].ID)
	assert.Equal(t, "ins_1", refs[0].InstallmentPlanID)
}

func TestGetPayment_NormalizesDates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pay_1","billingType":"PIX","status":"RECEIVED","value":150.5,"netValue":147.2,"dueDate":"2026-09-03","paymentDate":"2026-09-01"}`))
	})

	ref, err := client.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.ChargeReceived, ref.Status)
	assert.True(t, ref.Value.Equal(decimal.NewFromFloat(150.5)))
	require.NotNil(t, ref.PaymentDate)
	assert.Equal(t, "2026-09-01", ref.PaymentDate.Format("2006-01-02"))
}

func TestCancelPayment_RefundsPaidCharge(t *testing.T) {
	var refunded bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET":
			_, _ = w.Write([]byte(`{"id":"pay_1","billingType":"PIX","status":"RECEIVED","value":100,"dueDate":"2026-09-03"}`))
		case r.Method == "POST" && r.URL.Path == "/payments/pay_1/refund":
			refunded = true
			_, _ = w.Write([]byte(`{"id":"pay_1","billingType":"PIX","status":"REFUNDED","value":100,"dueDate":"2026-09-03"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ref, err := client.CancelPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, refunded)
	assert.Equal(t, models.ChargeRefunded, ref.Status)
}

func TestCancelPayment_DeletesOpenCharge(t *testing.T) {
	var deleted bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET":
			_, _ = w.Write([]byte(`{"id":"pay_1","billingType":"PIX","status":"PENDING","value":100,"dueDate":"2026-09-03"}`))
		case r.Method == "DELETE" && r.URL.Path == "/payments/pay_1":
			deleted = true
			_, _ = w.Write([]byte(`{"deleted":true,"id":"pay_1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ref, err := client.CancelPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, models.ChargePending, ref.Status)
}

func TestGetPixQrCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/pixQrCode", r.URL.Path)
		_, _ = w.Write([]byte(`{"encodedImage":"img==","payload":"000201copy","expirationDate":"2026-09-03 23:59:59"}`))
	})

	qr, err := client.GetPixQrCode(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "img==", qr.EncodedImage)
	assert.Equal(t, "000201copy", qr.Payload)
}
