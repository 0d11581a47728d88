package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// Ack is the acknowledgment body returned to the gateway.
type Ack struct {
	Success             *bool           `json:"success,omitempty"`
	Message             string          `json:"message,omitempty"`
	Error               string          `json:"error,omitempty"`
	OrderID             string          `json:"order_id,omitempty"`
	NewStatus           string          `json:"new_status,omitempty"`
	AdminWalletCredited json.Number     `json:"admin_wallet_credited,omitempty"`
	Credited            json.Number     `json:"credited,omitempty"`
	Outcome             OutcomeKind     `json:"outcome"`
	Debug               *SignatureDebug `json:"debug,omitempty"`
}

// SignatureDebug helps operators diagnose a rejected signature. It carries
// truncated digests only.
type SignatureDebug struct {
	OrderID           string `json:"order_id"`
	StatusCodeRaw     string `json:"status_code_raw"`
	StatusCodeType    string `json:"status_code_type"`
	StatusCode        string `json:"status_code"`
	GrossAmountRaw    string `json:"gross_amount_raw"`
	GrossAmountType   string `json:"gross_amount_type"`
	GrossAmount       string `json:"gross_amount"`
	ReceivedSignature string `json:"received_signature_prefix"`
	ExpectedSignature string `json:"expected_signature_prefix"`
}

const debugPrefixLen = 16

func boolPtr(b bool) *bool { return &b }

// BuildAck maps an outcome to the HTTP status and body the gateway expects.
// Only a signature failure is reported with a non-200 status.
func BuildAck(out Outcome, n midtrans.Notification, v midtrans.Verification) (int, Ack) {
	ack := Ack{Outcome: out.Kind}

	switch out.Kind {
	case OutcomeInvalidSignature:
		ack.Error = "Invalid signature"
		ack.Debug = &SignatureDebug{
			OrderID:           n.OrderID,
			StatusCodeRaw:     n.StatusCode.Raw,
			StatusCodeType:    n.StatusCode.Kind,
			StatusCode:        n.StatusCode.Value,
			GrossAmountRaw:    n.GrossAmount.Raw,
			GrossAmountType:   n.GrossAmount.Kind,
			GrossAmount:       n.GrossAmount.Value,
			ReceivedSignature: midtrans.Truncate(n.SignatureKey, debugPrefixLen),
			ExpectedSignature: v.ExpectedPrefix,
		}
		return http.StatusUnauthorized, ack

	case OutcomeApplied:
		ack.Success = boolPtr(true)
		ack.Message = out.Message
		ack.OrderID = out.OrderID
		ack.NewStatus = out.NewStatus
		if out.Credited != nil {
			if out.Flow == FlowOrderPayment {
				ack.AdminWalletCredited = json.Number(out.Credited.String())
			} else {
				ack.Credited = json.Number(out.Credited.String())
			}
		}

	case OutcomeAlreadyProcessed:
		ack.Success = boolPtr(true)
		ack.Message = out.Message

	case OutcomeNotFound, OutcomeLedgerFailed:
		ack.Success = boolPtr(false)
		ack.Message = out.Message

	case OutcomeError:
		ack.Error = out.Message
		if ack.Error == "" && out.Err != nil {
			ack.Error = out.Err.Error()
		}

	default:
		// pending, not final, payment failed and unrecognized are neutral
		ack.Message = out.Message
		ack.NewStatus = out.NewStatus
	}

	return http.StatusOK, ack
}

// ErrorAck acknowledges a request that failed before reaching a flow.
func ErrorAck(message string) Ack {
	return Ack{Outcome: OutcomeError, Error: message}
}
