package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/app"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List orders still awaiting payment, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := app.Build(cmd.Context(), pkg.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			orders, total, err := deps.Orders.ListOrders(cmd.Context(), "cli-"+uuid.NewString(), repositories.OrderFilter{
				Page:      1,
				PageSize:  limit,
				Status:    pkg.OrderStatusPendingPayment,
				SortBy:    "createdAt",
				SortOrder: "asc",
			})
			if err != nil {
				return err
			}
			if err := renderPending(cmd.OutOrStdout(), orders); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d pending orders\n", len(orders), total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum orders to show (max 100)")
	return cmd
}

func renderPending(w io.Writer, orders []models.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("Reference", "Parent", "Total", "Attempts", "Review", "Last error", "Created")
	for _, o := range orders {
		lastErr := ""
		if o.LastVerificationError != nil {
			lastErr = *o.LastVerificationError
		}
		review := ""
		if o.NeedsReview {
			review = "yes"
		}
		if err := table.Append([]string{
			o.TxRef,
			o.ParentEmail,
			fmt.Sprintf("%d %s", o.TotalAmount, o.Currency),
			strconv.Itoa(o.VerificationAttempts),
			review,
			lastErr,
			o.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
