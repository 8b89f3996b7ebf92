package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDraft() Draft {
	lines := []cart.Line{
		{Product: models.Product{ID: 1, Name: "A"}, Quantity: 2, UnitPrice: decimal.RequireFromString("20.00"), Total: decimal.RequireFromString("40.00")},
		{Product: models.Product{ID: 2, Name: "B"}, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00"), Total: decimal.RequireFromString("5.00")},
	}
	return Draft{
		Lines:      lines,
		Totals:     cart.DefaultPricing().Totals(lines),
		Currency:   "USD",
		SuccessURL: "http://shop.local/checkout/success",
		CancelURL:  "http://shop.local/checkout/cancel",
	}
}

func gatewayConfig(url string) config.GatewayClientConfig {
	return config.GatewayClientConfig{BaseURL: url, APIKey: "key", Timeout: 2 * time.Second, MaxFailures: 2, OpenInterval: time.Minute}
}

func TestCardGateway_Begin(t *testing.T) {
	var got cardSessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "cs_1", "url": "https://pay.example/cs_1"})
	}))
	defer srv.Close()

	g := NewCardGateway(gatewayConfig(srv.URL), zap.NewNop())
	redirect, err := g.Begin(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/cs_1", redirect.URL)
	assert.Equal(t, "cs_1", redirect.Reference)
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, "http://shop.local/checkout/success?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)

	var sum int64
	for _, item := range got.LineItems {
		sum += item.UnitAmount * int64(item.Quantity)
	}
	assert.Equal(t, int64(5950), sum, "line items add up to the order total")
	assert.Len(t, got.LineItems, 4)
}

func TestCardGateway_Authorize(t *testing.T) {
	tests := []struct {
		name    string
		session cardSession
		want    Outcome
		ref     string
	}{
		{"paid", cardSession{ID: "cs_1", PaymentStatus: "paid", PaymentIntent: "pi_1", AmountTotal: 5950}, Authorized, "pi_1"},
		{"unpaid", cardSession{ID: "cs_1", PaymentStatus: "unpaid", AmountTotal: 5950}, Declined, ""},
		{"paid with differing amount", cardSession{ID: "cs_1", PaymentStatus: "paid", PaymentIntent: "pi_1", AmountTotal: 4500}, Authorized, "pi_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
				_ = json.NewEncoder(w).Encode(tt.session)
			}))
			defer srv.Close()

			g := NewCardGateway(gatewayConfig(srv.URL), zap.NewNop())
			auth, err := g.Authorize(context.Background(), testDraft(), Callback{Reference: "cs_1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, auth.Outcome)
			assert.Equal(t, tt.ref, auth.Reference)
		})
	}
}

func TestCardGateway_Unavailable(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewCardGateway(gatewayConfig(srv.URL), zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := g.Begin(context.Background(), testDraft())
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	}
	assert.Equal(t, 2, calls, "breaker opens after two consecutive failures")
}

func TestCardGateway_RejectedDoesNotTripBreaker(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewCardGateway(gatewayConfig(srv.URL), zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := g.Begin(context.Background(), testDraft())
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, 3, calls)
}

func TestWalletGateway_BeginAndAuthorize(t *testing.T) {
	var created walletPaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/payments/payment":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_ = json.NewEncoder(w).Encode(walletPayment{
				ID: "PAY-1", State: "created",
				Links: []walletLink{
					{Href: "https://wallet.example/self", Rel: "self", Method: "GET"},
					{Href: "https://wallet.example/approve", Rel: "approval_url", Method: "REDIRECT"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/PAY-1/execute"):
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			state := "approved"
			if body["payer_id"] != "PAYER" {
				state = "failed"
			}
			tx := walletTransaction{}
			tx.Amount.Total = "59.5"
			_ = json.NewEncoder(w).Encode(walletPayment{ID: "PAY-1", State: state, Transactions: []walletTransaction{tx}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewWalletGateway(gatewayConfig(srv.URL), zap.NewNop())
	draft := testDraft()

	redirect, err := g.Begin(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.example/approve", redirect.URL)
	assert.Equal(t, "PAY-1", redirect.Reference)
	require.Len(t, created.Transactions, 1)
	assert.Equal(t, "59.50", created.Transactions[0].Amount.Total)
	assert.Equal(t, "10.00", created.Transactions[0].Amount.Details.Shipping)
	assert.Len(t, created.Transactions[0].ItemList.Items, 2)

	auth, err := g.Authorize(context.Background(), draft, Callback{Reference: "PAY-1", PayerID: "PAYER"})
	require.NoError(t, err)
	assert.True(t, auth.OK())
	assert.Equal(t, "PAY-1", auth.Reference)

	auth, err = g.Authorize(context.Background(), draft, Callback{Reference: "PAY-1", PayerID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, Declined, auth.Outcome)

	auth, err = g.Authorize(context.Background(), draft, Callback{Reference: "PAY-1"})
	require.NoError(t, err)
	assert.Equal(t, Declined, auth.Outcome)
}

func TestWalletGateway_ExecutedPaymentIsAuthorizedDespiteAmountDrift(t *testing.T) {
	var executes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		executes++
		tx := walletTransaction{}
		tx.Amount.Total = "61.00"
		_ = json.NewEncoder(w).Encode(walletPayment{ID: "PAY-1", State: "approved", Transactions: []walletTransaction{tx}})
	}))
	defer srv.Close()

	g := NewWalletGateway(gatewayConfig(srv.URL), zap.NewNop())
	auth, err := g.Authorize(context.Background(), testDraft(), Callback{Reference: "PAY-1", PayerID: "PAYER"})
	require.NoError(t, err)
	assert.True(t, auth.OK())
	assert.Equal(t, "PAY-1", auth.Reference)
	assert.Equal(t, 1, executes)
}

func TestWalletGateway_NoApprovalLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(walletPayment{ID: "PAY-2", State: "created"})
	}))
	defer srv.Close()

	_, err := NewWalletGateway(gatewayConfig(srv.URL), zap.NewNop()).Begin(context.Background(), testDraft())
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(CashOnDelivery{}, NewCardGateway(gatewayConfig("http://unused"), zap.NewNop()))

	s, err := r.Select(models.PaymentCOD)
	require.NoError(t, err)
	redirect, err := s.Begin(context.Background(), testDraft())
	require.NoError(t, err)
	assert.Nil(t, redirect)
	auth, err := s.Authorize(context.Background(), testDraft(), Callback{})
	require.NoError(t, err)
	assert.True(t, auth.OK())

	_, err = r.Select(models.PaymentWallet)
	assert.True(t, errors.Is(err, ErrUnsupportedMethod))
}
