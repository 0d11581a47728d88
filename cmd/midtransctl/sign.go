package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

var ruleNames = map[int]string{
	midtrans.RuleAsIs:    "as-is",
	midtrans.RuleRounded: "rounded",
	midtrans.RuleTwoDP:   "two-decimals",
}

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the expected signature for every amount rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := serverKey(cmd)
			if err != nil {
				return err
			}
			orderID, _ := cmd.Flags().GetString("order")
			statusCode, _ := cmd.Flags().GetString("status-code")
			amount, _ := cmd.Flags().GetString("amount")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server key: %s\n", midtrans.KeyPreview(key))
			for _, rule := range []int{midtrans.RuleAsIs, midtrans.RuleRounded, midtrans.RuleTwoDP} {
				candidate, ok := midtrans.AmountCandidate(rule, amount)
				if !ok {
					fmt.Fprintf(out, "rule %d (%s): not applicable\n", rule, ruleNames[rule])
					continue
				}
				fmt.Fprintf(out, "rule %d (%s): amount=%s signature=%s\n",
					rule, ruleNames[rule], candidate, midtrans.Sign(orderID, statusCode, candidate, key))
			}
			return nil
		},
	}

	cmd.Flags().String("order", "", "Order id")
	cmd.Flags().String("status-code", "200", "Status code")
	cmd.Flags().String("amount", "", "Gross amount as sent by the gateway")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
