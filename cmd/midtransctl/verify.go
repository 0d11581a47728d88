package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

var errSignatureMismatch = errors.New("signature does not match any amount rule")

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [file.json]",
		Short: "Verify the signature of a saved notification body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := serverKey(cmd)
			if err != nil {
				return err
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var n midtrans.Notification
			if err := json.Unmarshal(body, &n); err != nil {
				return fmt.Errorf("decode notification: %w", err)
			}

			v := midtrans.Verify(n, key)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "order_id:     %s\n", n.OrderID)
			fmt.Fprintf(out, "flow:         %s\n", webhook.Classify(n.OrderID))
			fmt.Fprintf(out, "status:       %s (code %s)\n", n.TransactionStatus, n.StatusCode.Value)
			fmt.Fprintf(out, "gross_amount: %s (%s)\n", n.GrossAmount.Raw, n.GrossAmount.Kind)

			if !v.Valid {
				fmt.Fprintf(out, "received:     %s\n", midtrans.Truncate(n.SignatureKey, 16))
				fmt.Fprintf(out, "expected:     %s\n", v.ExpectedPrefix)
				return errSignatureMismatch
			}
			fmt.Fprintf(out, "valid:        rule %d (%s), canonical amount %s\n", v.Rule, ruleNames[v.Rule], v.CanonicalAmount)
			return nil
		},
	}
}
