package midtrans

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Config{
		ServerKey: testServerKey,
		SnapURL:   "https://snap.example.com/snap/v1",
		APIURL:    "https://api.example.com/v2",
		IrisURL:   "https://iris.example.com/iris/api/v1",
		FinishURL: "sidrive://payment/finish",
		Timeout:   2 * time.Second,
	})
}

func basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(testServerKey+":"))
}

func TestCreateTransaction(t *testing.T) {
	defer gock.Off()

	gock.New("https://snap.example.com").
		Post("/snap/v1/transactions").
		MatchHeader("Authorization", basicAuth()).
		JSON(map[string]interface{}{
			"transaction_details": map[string]interface{}{"order_id": "TOPUP-42", "gross_amount": 25000},
			"enabled_payments":    DefaultEnabledPayments,
			"callbacks":           map[string]string{"finish": "sidrive://payment/finish"},
		}).
		Reply(201).
		JSON(map[string]string{"token": "snap-token", "redirect_url": "https://pay.example.com/snap-token"})

	resp, err := newTestClient().CreateTransaction(context.Background(), SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: "TOPUP-42", GrossAmount: 25000},
	})

	require.NoError(t, err)
	assert.Equal(t, "snap-token", resp.Token)
	assert.Equal(t, "https://pay.example.com/snap-token", resp.RedirectURL)
	assert.True(t, gock.IsDone())
}

func TestCreateTransaction_GatewayError(t *testing.T) {
	defer gock.Off()

	gock.New("https://snap.example.com").
		Post("/snap/v1/transactions").
		Reply(400).
		JSON(map[string]interface{}{"error_messages": []string{"transaction_details.order_id has already been taken"}})

	_, err := newTestClient().CreateTransaction(context.Background(), SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: "ORD-1", GrossAmount: 1000},
	})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already been taken")
}

func TestCreateTransaction_Validation(t *testing.T) {
	_, err := newTestClient().CreateTransaction(context.Background(), SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: "ORD-1"},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStatus(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.example.com").
		Get("/v2/ORD-99/status").
		MatchHeader("Authorization", basicAuth()).
		Reply(200).
		JSON(map[string]interface{}{
			"order_id":           "ORD-99",
			"transaction_status": "settlement",
			"status_code":        "200",
			"gross_amount":       "50000.00",
			"signature_key":      "abc",
		})

	st, err := newTestClient().Status(context.Background(), "ORD-99")
	require.NoError(t, err)
	assert.Equal(t, "settlement", st.TransactionStatus)

	n := st.AsNotification()
	assert.Equal(t, "ORD-99", n.OrderID)
	assert.Equal(t, "50000.00", n.GrossAmount.Value)
	assert.Equal(t, "200", n.StatusCode.Value)
}

func TestStatus_NotFound(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.example.com").
		Get("/v2/ORD-404/status").
		Reply(200).
		JSON(map[string]string{"status_code": "404", "status_message": "Transaction doesn't exist."})

	_, err := newTestClient().Status(context.Background(), "ORD-404")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCreatePayout(t *testing.T) {
	defer gock.Off()

	gock.New("https://iris.example.com").
		Post("/iris/api/v1/payouts").
		JSON(map[string]interface{}{"payouts": []map[string]string{{
			"beneficiary_name":    "Admin",
			"beneficiary_account": "1234567890",
			"beneficiary_bank":    "bca",
			"beneficiary_email":   "admin@example.com",
			"amount":              "150000",
			"notes":               "weekly",
		}}}).
		Reply(201).
		JSON(map[string]interface{}{"payouts": []map[string]string{{"status": "queued", "reference_no": "ref-1"}}})

	res, err := newTestClient().CreatePayout(context.Background(), PayoutItem{
		BeneficiaryName:    "Admin",
		BeneficiaryAccount: "1234567890",
		BeneficiaryBank:    "BCA",
		BeneficiaryEmail:   "admin@example.com",
		Amount:             decimal.NewFromInt(150000),
		Notes:              "weekly",
	})

	require.NoError(t, err)
	assert.Equal(t, "ref-1", res.ReferenceNo)
	assert.Equal(t, PayoutQueued, res.Status)
}

func TestCreatePayout_NonJSONResponse(t *testing.T) {
	defer gock.Off()

	gock.New("https://iris.example.com").
		Post("/iris/api/v1/payouts").
		Reply(200).
		BodyString("<html>maintenance</html>").
		SetHeader("Content-Type", "text/html")

	_, err := newTestClient().CreatePayout(context.Background(), PayoutItem{Amount: decimal.NewFromInt(100000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestClientWithoutServerKey(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Status(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIsRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad request", &APIError{StatusCode: 400, Message: "invalid beneficiary"}, true},
		{"unauthorized", &APIError{StatusCode: 401}, true},
		{"wrapped unprocessable", fmt.Errorf("create payout: %w", &APIError{StatusCode: 422}), true},
		{"request timeout status", &APIError{StatusCode: 408}, false},
		{"server error", &APIError{StatusCode: 500}, false},
		{"unavailable", &APIError{StatusCode: 503}, false},
		{"deadline", fmt.Errorf("midtrans api call failed: %w", context.DeadlineExceeded), false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), false},
		{"not configured", ErrNotConfigured, true},
		{"invalid request", fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRejection(tt.err))
		})
	}
}
