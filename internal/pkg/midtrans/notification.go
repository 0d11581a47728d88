package midtrans

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Transaction statuses reported by the gateway.
const (
	StatusSettlement = "settlement"
	StatusCapture    = "capture"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
	StatusFailure    = "failure"
	StatusRefund     = "refund"

	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// Kinds of JSON value a FlexString was decoded from.
const (
	KindString = "string"
	KindNumber = "number"
	KindNull   = "null"
	KindOther  = "other"
)

// FlexString accepts a JSON string or number and keeps both the raw token and
// its string form. Numbers are stringified the way a JavaScript sender would
// (shortest form, no trailing zeros), since that is what gets hashed upstream.
type FlexString struct {
	Value string
	Raw   string
	Kind  string
}

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	f.Raw = string(data)

	switch {
	case len(data) == 0 || string(data) == "null":
		f.Value, f.Kind = "", KindNull
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Value, f.Kind = s, KindString
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		f.Value, f.Kind = strconv.FormatFloat(n, 'f', -1, 64), KindNumber
	default:
		f.Value, f.Kind = string(data), KindOther
	}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if f.Kind == KindNumber && f.Raw != "" {
		return []byte(f.Raw), nil
	}
	return json.Marshal(f.Value)
}

// String implements fmt.Stringer.
func (f FlexString) String() string { return f.Value }

// Flex builds a string-kind FlexString.
func Flex(s string) FlexString {
	return FlexString{Value: s, Raw: strconv.Quote(s), Kind: KindString}
}

// Notification is the HTTP notification body posted by the gateway.
type Notification struct {
	OrderID           string     `json:"order_id" validate:"required,max=100"`
	TransactionStatus string     `json:"transaction_status" validate:"required,max=32"`
	FraudStatus       string     `json:"fraud_status,omitempty"`
	StatusCode        FlexString `json:"status_code"`
	GrossAmount       FlexString `json:"gross_amount"`
	SignatureKey      string     `json:"signature_key"`
	TransactionID     string     `json:"transaction_id,omitempty"`
	PaymentType       string     `json:"payment_type,omitempty"`
	TransactionTime   string     `json:"transaction_time,omitempty"`
}

// IsSuccess reports whether the gateway considers the funds captured.
func IsSuccess(transactionStatus, fraudStatus string) bool {
	return transactionStatus == StatusSettlement ||
		(transactionStatus == StatusCapture && fraudStatus == FraudAccept)
}

// IsFailure reports whether the transaction reached a terminal failed state.
func IsFailure(transactionStatus string) bool {
	switch transactionStatus {
	case StatusDeny, StatusCancel, StatusExpire, StatusFailure:
		return true
	}
	return false
}
