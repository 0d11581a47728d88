package webhook

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		orderID string
		want    Flow
	}{
		{"SETL-001", FlowSettlement},
		{"SETL", FlowSettlement},
		{"TOPUP-42", FlowTopup},
		{"TOPUP_1700000000", FlowTopup},
		{"ORD-99", FlowOrderPayment},
		{"setl-001", FlowOrderPayment},
		{"topup-42", FlowOrderPayment},
		{"XSETL-1", FlowOrderPayment},
		{"", FlowOrderPayment},
	}

	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			if got := Classify(tt.orderID); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.orderID, got, tt.want)
			}
		})
	}
}
