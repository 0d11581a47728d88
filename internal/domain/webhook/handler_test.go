package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

func newRouter(handlers map[webhook.Flow]webhook.FlowHandler) http.Handler {
	svc, _, _ := newService(handlers)
	r := chi.NewRouter()
	r.Mount("/webhooks", webhook.NewHandler(svc).Routes())
	return r
}

func post(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/midtrans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func notificationJSON(orderID, status, statusCode, amount, signature string) string {
	b, _ := json.Marshal(map[string]any{
		"order_id":           orderID,
		"transaction_status": status,
		"status_code":        statusCode,
		"gross_amount":       amount,
		"signature_key":      signature,
	})
	return string(b)
}

func TestNotifyUnknownOrderIsAcknowledged(t *testing.T) {
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{
		webhook.FlowOrderPayment: &recordingHandler{out: webhook.NotFound("Order not found")},
	})

	sig := midtrans.Sign("ORD-404", "200", "15000.00", serverKey)
	rec, body := post(t, router, notificationJSON("ORD-404", "settlement", "200", "15000.00", sig))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Order not found", body["message"])
	assert.Equal(t, string(webhook.OutcomeNotFound), body["outcome"])
}

func TestNotifyConfirmedPaymentAck(t *testing.T) {
	out := webhook.Applied("Payment confirmed").WithCredit(decimal.RequireFromString("50000"), nil)
	out.NewStatus = "searching_driver"
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{
		webhook.FlowOrderPayment: &recordingHandler{out: out},
	})

	sig := midtrans.Sign("ORD-99", "200", "50000", serverKey)
	body := `{"order_id":"ORD-99","transaction_status":"settlement","status_code":200,"gross_amount":50000,"signature_key":"` + sig + `"}`
	rec, ack := post(t, router, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, ack["success"])
	assert.Equal(t, "Payment confirmed", ack["message"])
	assert.Equal(t, "ORD-99", ack["order_id"])
	assert.Equal(t, "searching_driver", ack["new_status"])
	assert.Equal(t, float64(50000), ack["admin_wallet_credited"])
}

func TestNotifyInvalidSignature(t *testing.T) {
	h := &recordingHandler{out: webhook.Applied("Payment confirmed")}
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{webhook.FlowOrderPayment: h})

	sig := midtrans.Sign("ORD-1", "200", "50000.00", "another-key")
	rec, body := post(t, router, notificationJSON("ORD-1", "settlement", "200", "50000.00", sig))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid signature", body["error"])
	assert.Empty(t, h.events)

	debug, ok := body["debug"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ORD-1", debug["order_id"])
	assert.Equal(t, "string", debug["gross_amount_type"])
	assert.Len(t, debug["received_signature_prefix"], 16)
	assert.Len(t, debug["expected_signature_prefix"], 16)
	assert.NotContains(t, rec.Body.String(), serverKey)
	assert.NotContains(t, rec.Body.String(), sig)
}

func TestNotifyMalformedBodyIsAcknowledged(t *testing.T) {
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"order_id":`},
		{"missing order id", `{"transaction_status":"settlement","status_code":"200","gross_amount":"1000.00","signature_key":"x"}`},
		{"missing status", `{"order_id":"ORD-1","status_code":"200","gross_amount":"1000.00","signature_key":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := post(t, router, tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, string(webhook.OutcomeError), body["outcome"])
		})
	}
}

func TestNotifyPreflight(t *testing.T) {
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{})
	req := httptest.NewRequest(http.MethodOptions, "/webhooks/midtrans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestNotifyIgnoresClientDisconnect(t *testing.T) {
	flow := &recordingHandler{out: webhook.Applied("Payment confirmed")}
	router := newRouter(map[webhook.Flow]webhook.FlowHandler{webhook.FlowOrderPayment: flow})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sig := midtrans.Sign("ORD-77", "200", "20000.00", serverKey)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/midtrans",
		strings.NewReader(notificationJSON("ORD-77", "settlement", "200", "20000.00", sig))).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, flow.events, 1)
	assert.NoError(t, flow.ctxErr)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
