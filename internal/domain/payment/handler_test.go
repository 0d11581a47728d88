package payment_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidrive/sidrive-api/internal/domain/payment"
	"github.com/sidrive/sidrive-api/internal/middleware"
	"github.com/sidrive/sidrive-api/internal/pkg/jwt"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

func newTestRouter(t *testing.T) (http.Handler, *fixture, string) {
	t.Helper()
	f := newFixture()
	client := midtrans.NewClient(midtrans.Config{
		ServerKey: "SB-Mid-server-handler",
		SnapURL:   "https://snap.example.com/snap/v1",
		APIURL:    "https://api.example.com/v2",
		Timeout:   2 * time.Second,
	})
	svc := payment.NewService(client, f.orders, f.ledger, f.drivers)

	jwtSvc := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(userID, jwt.RoleCustomer)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.With(middleware.Auth(jwtSvc)).Mount("/api/v1/payments", payment.NewHandler(svc).Routes())
	return r, f, token
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTopupCheckoutEndpoint(t *testing.T) {
	defer gock.Off()
	gock.New("https://snap.example.com").
		Post("/snap/v1/transactions").
		Reply(201).
		JSON(map[string]string{"token": "snap-tok", "redirect_url": "https://pay.example.com/snap-tok"})

	router, f, token := newTestRouter(t)
	rec := do(router, http.MethodPost, "/api/v1/payments/topups", token, `{"order_id":"TOPUP-77","amount":"25000"}`)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"token":"snap-tok"`)
	require.Len(t, f.ledger.pending, 1)
	assert.Equal(t, "snap-tok", f.ledger.pending[0].Metadata["snap_token"])
	assert.True(t, gock.IsDone())
}

func TestTopupCheckoutValidation(t *testing.T) {
	router, f, token := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"wrong prefix", `{"order_id":"ORD-1","amount":"25000"}`},
		{"zero amount", `{"order_id":"TOPUP-1","amount":"0"}`},
		{"bad order id", `{"order_id":"TOPUP 1","amount":"25000"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/v1/payments/topups", token, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, f.ledger.pending)
}

func TestCheckoutRequiresToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodPost, "/api/v1/payments/topups", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderCheckoutRejectsReservedPrefix(t *testing.T) {
	router, _, token := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/v1/payments/orders", token, `{"order_id":"SETL-ORDER-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prefix")
}

func TestStatusEndpoint(t *testing.T) {
	defer gock.Off()
	gock.New("https://api.example.com").
		Get("/v2/ORD-5/status").
		Reply(200).
		JSON(map[string]interface{}{
			"order_id":           "ORD-5",
			"transaction_status": "pending",
			"status_code":        "201",
			"gross_amount":       "10000.00",
		})

	router, _, token := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/v1/payments/ORD-5/status", token, "")

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"transaction_status":"pending"`)
}

func TestStatusEndpointUnknownTransaction(t *testing.T) {
	defer gock.Off()
	gock.New("https://api.example.com").
		Get("/v2/ORD-6/status").
		Reply(200).
		JSON(map[string]string{"status_code": "404", "status_message": "Transaction doesn't exist."})

	router, _, token := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/v1/payments/ORD-6/status", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
