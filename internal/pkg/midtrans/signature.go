package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Canonicalization rules for gross_amount, tried in this order.
const (
	RuleNone    = 0
	RuleAsIs    = 1 // amount exactly as received
	RuleRounded = 2 // parsed as float, rounded half up, no decimal part
	RuleTwoDP   = 3 // ".00" appended when no decimal point is present
)

// Verification is the result of checking a notification signature.
type Verification struct {
	Valid           bool
	CanonicalAmount string
	Rule            int
	// ExpectedPrefix is a truncated digest for the as-is candidate, for diagnostics.
	ExpectedPrefix string
}

// Sign computes hex(SHA-512(orderID + statusCode + grossAmount + serverKey)).
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// AmountCandidate returns the gross amount string for a rule, or false when
// the rule cannot produce one (rounding a non-numeric amount).
func AmountCandidate(rule int, grossAmount string) (string, bool) {
	switch rule {
	case RuleAsIs:
		return grossAmount, true
	case RuleRounded:
		f, err := strconv.ParseFloat(strings.TrimSpace(grossAmount), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return strconv.FormatFloat(math.Floor(f+0.5), 'f', 0, 64), true
	case RuleTwoDP:
		if strings.Contains(grossAmount, ".") {
			return grossAmount, true
		}
		return grossAmount + ".00", true
	}
	return "", false
}

// Verify checks the notification signature against every canonicalization
// rule in order. The first match fixes the canonical amount.
func Verify(n Notification, serverKey string) Verification {
	statusCode := n.StatusCode.Value
	grossAmount := n.GrossAmount.Value
	received := []byte(n.SignatureKey)

	var out Verification
	for _, rule := range []int{RuleAsIs, RuleRounded, RuleTwoDP} {
		amount, ok := AmountCandidate(rule, grossAmount)
		if !ok {
			continue
		}
		expected := Sign(n.OrderID, statusCode, amount, serverKey)
		if rule == RuleAsIs {
			out.ExpectedPrefix = Truncate(expected, 16)
		}
		if subtle.ConstantTimeCompare([]byte(expected), received) == 1 {
			out.Valid = true
			out.CanonicalAmount = amount
			out.Rule = rule
			return out
		}
	}
	return out
}

// Truncate returns at most n leading characters of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// KeyPreview renders a secret for logs: length plus first and last four characters.
func KeyPreview(key string) string {
	if len(key) <= 12 {
		return "len=" + strconv.Itoa(len(key))
	}
	return key[:4] + "..." + key[len(key)-4:] + " len=" + strconv.Itoa(len(key))
}
