package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Checkout security and payment-confirmation service",
	Long:  "A checkout backend guarding the handoff to the hosted payment processor: short-lived checkout tokens, idempotent payment webhooks, and the confirmation notification pipeline.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
