package flutterwave

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		Logger:    zap.NewNop(),
		BaseURL:   srv.URL,
		SecretKey: "FLWSECK_TEST-abc",
		Timeout:   time.Second,
	})
}

func TestVerifyTransaction_Successful(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/TX1/verify", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST-abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","message":"Transaction fetched successfully",
			"data":{"id":4711,"tx_ref":"BBA-1","amount":30000,"currency":"ugx","status":"successful"}}`))
	})

	res, err := client.VerifyTransaction(context.Background(), "TX1")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "4711", res.TransactionID)
	assert.Equal(t, "BBA-1", res.TxRef)
	assert.Equal(t, "UGX", res.Currency)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(30000)))
	assert.NotEmpty(t, res.Raw)
}

func TestVerifyTransaction_NotSuccessful(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{"pending charge", http.StatusOK, `{"status":"success","data":{"id":1,"status":"pending","amount":100,"currency":"UGX"}}`, `provider status "pending" is not successful`},
		{"failed charge", http.StatusOK, `{"status":"success","data":{"id":1,"status":"failed"}}`, `provider status "failed" is not successful`},
		{"unknown transaction", http.StatusBadRequest, `{"status":"error","message":"No transaction was found for this id","data":null}`, "No transaction was found for this id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			res, err := client.VerifyTransaction(context.Background(), "TX1")
			require.NoError(t, err)
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestVerifyTransaction_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"throttled", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }},
		{"bad credentials", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) { time.Sleep(1500 * time.Millisecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.VerifyTransaction(context.Background(), "TX1")
			assert.ErrorIs(t, err, pkg.ErrVerificationUnavailable)
		})
	}
}

func TestVerifyTransaction_MissingSecretKey(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop(), BaseURL: "http://127.0.0.1:1"})
	_, err := client.VerifyTransaction(context.Background(), "TX1")
	assert.ErrorIs(t, err, pkg.ErrVerificationUnavailable)
}

func TestVerifyByReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "BBA-01J9 X", r.URL.Query().Get("tx_ref"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":"99","tx_ref":"BBA-01J9 X","amount":"50000.00","currency":"UGX","status":"successful"}}`))
	})

	res, err := client.VerifyByReference(context.Background(), "BBA-01J9 X")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "99", res.TransactionID)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(50000)))
}

func TestVerifyTransaction_StringID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/TX1/verify", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","data":{"status":"successful","amount":30000,"currency":"UGX","id":"TX1"}}`))
	})

	res, err := client.VerifyTransaction(context.Background(), "TX1")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "TX1", res.TransactionID)
	assert.Equal(t, "UGX", res.Currency)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(30000)))
}

func TestTransactionID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionID
	}{
		{`4711`, "4711"},
		{`"TX1"`, "TX1"},
		{`"99"`, "99"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id TransactionID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id), tt.in)
		assert.Equal(t, tt.want, id)
	}

	var id TransactionID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}
