package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidrive/sidrive-api/internal/config"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

const testKey = "SB-Mid-server-cli-test"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&config.Config{MidtransServerKey: testKey})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignPrintsEveryRule(t *testing.T) {
	out, err := run(t, "sign", "--order", "ORD-1", "--amount", "50000")
	require.NoError(t, err)

	assert.Contains(t, out, "amount=50000 signature="+midtrans.Sign("ORD-1", "200", "50000", testKey))
	assert.Contains(t, out, "amount=50000.00 signature="+midtrans.Sign("ORD-1", "200", "50000.00", testKey))
	assert.NotContains(t, out, testKey)
}

func TestSignRequiresKey(t *testing.T) {
	cmd := newRootCmd(&config.Config{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"sign", "--order", "ORD-1", "--amount", "1"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrMissingServerKey)
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	body := fmt.Sprintf(`{"order_id":"TOPUP-9","status_code":"200","gross_amount":"50000.00","transaction_status":"settlement","signature_key":%q}`,
		midtrans.Sign("TOPUP-9", "200", "50000.00", testKey))
	require.NoError(t, os.WriteFile(valid, []byte(body), 0o600))

	out, err := run(t, "verify", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "flow:         topup")
	assert.Contains(t, out, "rule 1 (as-is)")

	tampered := filepath.Join(dir, "tampered.json")
	require.NoError(t, os.WriteFile(tampered, []byte(`{"order_id":"TOPUP-9","status_code":"200","gross_amount":"1.00","signature_key":"abc"}`), 0o600))

	_, err = run(t, "verify", tampered)
	assert.ErrorIs(t, err, errSignatureMismatch)
}
