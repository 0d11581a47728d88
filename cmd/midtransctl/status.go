package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sidrive/sidrive-api/internal/config"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status [order-id]",
		Short: "Query the gateway for the current transaction status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := serverKey(cmd)
			if err != nil {
				return err
			}

			client := midtrans.NewClient(midtrans.Config{
				ServerKey: key,
				APIURL:    cfg.MidtransAPIURL,
				Timeout:   cfg.MidtransTimeout,
			})
			st, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
