package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:     "keeper",
		Short:   "CLI for keeper wallet",
		Long:    "This CLI lets you manage wallets, sign and send transactions",
		Version: formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(walletCmd, txCmd, signCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
