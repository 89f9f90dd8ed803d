package flutterwave

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	envelopeSuccess   = "success"
	transactionPaidOK = "successful"
)

// VerificationResult is the provider answer normalized for reconciliation.
type VerificationResult struct {
	OK             bool
	TransactionID  string
	TxRef          string
	Amount         decimal.Decimal
	Currency       string
	ProviderStatus string
	Reason         string
	Raw            json.RawMessage
}

type verifyEnvelope struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Data    *transactionData `json:"data"`
}

type transactionData struct {
	ID            TransactionID   `json:"id"`
	TxRef         string          `json:"tx_ref"`
	FlwRef        string          `json:"flw_ref"`
	Amount        decimal.Decimal `json:"amount"`
	ChargedAmount decimal.Decimal `json:"charged_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
}

// TransactionID is a provider transaction id sent either as a JSON number or a JSON string.
type TransactionID string

func (id *TransactionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TransactionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	*id = TransactionID(n.String())
	return nil
}

func (id TransactionID) String() string { return string(id) }
