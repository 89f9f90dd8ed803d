package main

import (
	"fmt"
	"os"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/spf13/cobra"
)

func main() {
	pkg.InitLogger("order-admin")
	defer func() { _ = pkg.Logger.Sync() }()

	rootCmd := &cobra.Command{
		Use:          "bba-admin",
		Short:        "Operator tools for book order payments",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
