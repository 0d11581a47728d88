// Command midtransctl is an operator tool for checking gateway signatures
// and transaction status outside the API process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidrive/sidrive-api/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "midtransctl",
		Short:         "Inspect Midtrans notifications and transactions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server-key", cfg.MidtransServerKey, "Midtrans server key (defaults to MIDTRANS_SERVER_KEY)")

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(statusCmd(cfg))

	return rootCmd
}

func serverKey(cmd *cobra.Command) (string, error) {
	key, err := cmd.Flags().GetString("server-key")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", config.ErrMissingServerKey
	}
	return key, nil
}
