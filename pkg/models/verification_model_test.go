package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentVerification_Clamped(t *testing.T) {
	v := PaymentVerification{
		TransactionID:  strings.Repeat("7", 70),
		ProviderStatus: "successful",
		Currency:       "UGANDAN-SHILLINGS-X",
		Reason:         strings.Repeat("r", 500),
	}.Clamped()

	assert.Len(t, v.TransactionID, 64)
	assert.Equal(t, "successful", v.ProviderStatus)
	assert.Equal(t, "UGANDAN-SHILLING", v.Currency)
	assert.Len(t, v.Reason, 500, "reason is TEXT")

	short := PaymentVerification{TransactionID: "TX1", Currency: "UGX"}.Clamped()
	assert.Equal(t, "TX1", short.TransactionID)
	assert.Equal(t, "UGX", short.Currency)
}
