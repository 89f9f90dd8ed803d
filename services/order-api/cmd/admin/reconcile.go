package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/app"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var txID, txRef, orderID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Verify one payment with the provider and settle its order",
		Example: `  bba-admin reconcile --tx 285959875 --ref BBA-01J9Z3K4X5
  bba-admin reconcile --order 3f0c4a39-2f35-4a57-9d4f-6a1f2c3b4d5e`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == "" && (txID == "" || txRef == "") {
				return errors.New("either --order or both --tx and --ref are required")
			}
			deps, cleanup, err := app.Build(cmd.Context(), pkg.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			traceID := "cli-" + uuid.NewString()
			var result services.ReconcileResult
			if orderID != "" {
				result, err = deps.Reconciler.ReverifyOrder(cmd.Context(), traceID, orderID)
			} else {
				result, err = deps.Reconciler.Reconcile(cmd.Context(), traceID, txID, txRef)
			}
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			if !result.Success {
				return fmt.Errorf("order not settled (retryable=%t)", result.Retryable)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&txID, "tx", "", "Provider transaction id")
	cmd.Flags().StringVar(&txRef, "ref", "", "Order transaction reference")
	cmd.Flags().StringVar(&orderID, "order", "", "Order id; asks the provider by the order's reference")
	return cmd
}

func printResult(w io.Writer, r services.ReconcileResult) {
	fmt.Fprintf(w, "order:        %s\n", r.OrderID)
	fmt.Fprintf(w, "status:       %s\n", r.Status)
	fmt.Fprintf(w, "success:      %t\n", r.Success)
	fmt.Fprintf(w, "retryable:    %t\n", r.Retryable)
	if r.AlreadyPaid {
		fmt.Fprintln(w, "already paid: true")
	}
	if r.NeedsReview {
		fmt.Fprintln(w, "needs review: true")
	}
	if r.Reason != "" {
		fmt.Fprintf(w, "reason:       %s\n", r.Reason)
	}
}
