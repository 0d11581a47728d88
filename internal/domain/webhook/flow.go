package webhook

import "strings"

// Flow is the business flow a notification belongs to.
type Flow string

const (
	FlowOrderPayment Flow = "order_payment"
	FlowTopup        Flow = "topup"
	FlowSettlement   Flow = "settlement"
)

const (
	settlementPrefix = "SETL"
	topupPrefix      = "TOPUP"
)

// Classify routes a gateway order id by prefix. Anything that is not a
// settlement or top-up id is treated as an order payment.
func Classify(orderID string) Flow {
	switch {
	case strings.HasPrefix(orderID, settlementPrefix):
		return FlowSettlement
	case strings.HasPrefix(orderID, topupPrefix):
		return FlowTopup
	default:
		return FlowOrderPayment
	}
}
