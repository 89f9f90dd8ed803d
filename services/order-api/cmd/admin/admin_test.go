package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/models"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPending(t *testing.T) {
	reason := "payment was not successful"
	var buf bytes.Buffer
	err := renderPending(&buf, []models.Order{{
		TxRef:                 "BBA-1",
		ParentEmail:           "jane@example.com",
		TotalAmount:           30000,
		Currency:              "UGX",
		VerificationAttempts:  2,
		NeedsReview:           true,
		LastVerificationError: &reason,
		CreatedAt:             time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"BBA-1", "jane@example.com", "30000 UGX", "yes", reason, "2026-03-01 09:30"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, services.ReconcileResult{Retryable: false, NeedsReview: true, Reason: "currency mismatch", Status: pkg.OrderStatusPendingPayment})
	assert.Contains(t, buf.String(), "needs review: true")
	assert.Contains(t, buf.String(), "currency mismatch")
}

func TestReconcileCmd_RequiresTarget(t *testing.T) {
	cmd := reconcileCmd()
	cmd.SetArgs([]string{"--tx", "1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "--order or both --tx and --ref")
}
