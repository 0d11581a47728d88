// Package metrics exposes service metrics in Prometheus text format.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Handler serves all registered metrics.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}

// WebhookOutcome counts a processed gateway notification.
func WebhookOutcome(flow, outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`webhook_notifications_total{flow=%q,outcome=%q}`, flow, outcome)).Inc()
}

// SignatureRule counts which canonicalization rule matched; rule 0 means none did.
func SignatureRule(rule int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`webhook_signature_total{rule="%d"}`, rule)).Inc()
}

// WebhookDuration records end-to-end notification handling time.
func WebhookDuration(flow string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`webhook_duration_seconds{flow=%q}`, flow)).UpdateDuration(start)
}

// LedgerMutation counts ledger mutator calls by category and result.
func LedgerMutation(category, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ledger_mutations_total{category=%q,result=%q}`, category, result)).Inc()
}

// EventPublish counts event sink deliveries.
func EventPublish(sink, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payment_events_total{sink=%q,result=%q}`, sink, result)).Inc()
}

// GatewayCall records latency and result of an outbound gateway request.
func GatewayCall(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`gateway_requests_total{operation=%q,result=%q}`, operation, result)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`gateway_request_duration_seconds{operation=%q}`, operation)).UpdateDuration(start)
}

// HTTPRequest records a served request.
func HTTPRequest(route string, status int, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`http_requests_total{route=%q,status="%d"}`, route, status)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`http_request_duration_seconds{route=%q}`, route)).UpdateDuration(start)
}

// Reconcile counts reconciliation results by flow.
func Reconcile(flow, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`reconcile_records_total{flow=%q,result=%q}`, flow, result)).Inc()
}
