//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/testutils"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecretKey   = "FLWSECK_TEST-integration"
	testWebhookHash = "integration-hash"
	testProviderTx  = "4975331"
)

// fakeFlutterwave answers verify calls for a single settled transaction.
type fakeFlutterwave struct {
	txRef  string
	amount int64
	calls  int64
}

func (f *fakeFlutterwave) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if r.Header.Get("Authorization") != "Bearer "+testSecretKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/transactions/"+testProviderTx+"/verify" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"success","message":"Transaction fetched successfully","data":{"id":%q,"tx_ref":%q,"amount":%d,"currency":"UGX","status":"successful"}}`,
			testProviderTx, f.txRef, f.amount)
	})
}

func startOrderAPI(t *testing.T, flw *fakeFlutterwave) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	flwSrv := httptest.NewServer(flw.handler())
	t.Cleanup(flwSrv.Close)

	t.Setenv("APP_PRIMARY_DB_ADDR", testutils.StartPostgresDSN(t))
	t.Setenv("APP_FLW_BASE_URL", flwSrv.URL)
	t.Setenv("APP_FLW_SECRET_KEY", testSecretKey)
	t.Setenv("APP_FLW_WEBHOOK_HASH", testWebhookHash)
	t.Setenv("APP_KAFKA_BROKERS", "")
	t.Setenv("APP_REDIS_ADDR", "")

	srv, cleanup, err := NewApp(context.Background(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	api := httptest.NewServer(srv.Handler)
	t.Cleanup(api.Close)
	return api
}

func call(t *testing.T, method, url string, body any, headers map[string]string, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type orderEnvelope struct {
	TraceID string              `json:"traceId"`
	Data    views.OrderResponse `json:"data"`
}

func TestOrderToPaidFlow(t *testing.T) {
	flw := &fakeFlutterwave{txRef: "BBA-INTEGRATION-1", amount: 60000}
	api := startOrderAPI(t, flw)
	base := api.URL + "/api/v1"

	// create
	var created orderEnvelope
	status := call(t, http.MethodPost, base+"/orders", views.CreateOrderRequest{
		ParentName:  "Grace Namutebi",
		ParentEmail: "grace@example.com",
		TotalAmount: 60000,
		TxRef:       flw.txRef,
		Items: []views.OrderItemRequest{
			{ISBN: "9780547328614", Title: "Saxon Math 5/4", Quantity: 1, UnitPrice: 35000},
			{ISBN: "9781603421447", Title: "Handwriting Without Tears", Quantity: 1, UnitPrice: 25000},
		},
	}, nil, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, pkg.OrderStatusPendingPayment, created.Data.Status)
	assert.Equal(t, int64(9000), created.Data.MarkupAmount)
	assert.Equal(t, int64(51000), created.Data.SupplierShare)
	assert.NotEmpty(t, created.TraceID)

	// duplicate reference
	status = call(t, http.MethodPost, base+"/orders", views.CreateOrderRequest{
		ParentName: "Someone Else", ParentEmail: "else@example.com", TotalAmount: 1000, TxRef: flw.txRef,
		Items: []views.OrderItemRequest{{ISBN: "1", Quantity: 1, UnitPrice: 1000}},
	}, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	// a transaction the provider does not know leaves the order pending
	var rejected views.ReconcileResponse
	status = call(t, http.MethodPost, base+"/payments/verify",
		views.VerifyPaymentRequest{TransactionID: "999", OrderReference: flw.txRef}, nil, &rejected)
	assert.False(t, rejected.Success)
	assert.True(t, rejected.Retryable)
	assert.NotEqual(t, http.StatusOK, status)

	// verify
	var verified views.ReconcileResponse
	status = call(t, http.MethodPost, base+"/payments/verify",
		views.VerifyPaymentRequest{TransactionID: testProviderTx, OrderReference: flw.txRef}, nil, &verified)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verified.Success)
	assert.False(t, verified.AlreadyPaid)
	assert.Equal(t, pkg.OrderStatusPaid, verified.Status)

	// repeat verification is idempotent
	var again views.ReconcileResponse
	status = call(t, http.MethodPost, base+"/payments/verify",
		views.VerifyPaymentRequest{TransactionID: testProviderTx, OrderReference: flw.txRef}, nil, &again)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, again.Success)
	assert.True(t, again.AlreadyPaid)

	// webhook without the shared hash is refused
	webhook := map[string]any{
		"event": "charge.completed",
		"data":  map[string]any{"id": 4975331, "tx_ref": flw.txRef, "status": "successful"},
	}
	status = call(t, http.MethodPost, base+"/payments/webhook", webhook, map[string]string{pkg.HeaderWebhookHash: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// signed webhook for a paid order is acknowledged
	var hooked views.ReconcileResponse
	status = call(t, http.MethodPost, base+"/payments/webhook", webhook, map[string]string{pkg.HeaderWebhookHash: testWebhookHash}, &hooked)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, hooked.AlreadyPaid)

	// lookup by reference
	var fetched orderEnvelope
	status = call(t, http.MethodGet, base+"/orders/by-ref/"+flw.txRef, nil, nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, pkg.OrderStatusPaid, fetched.Data.Status)
	require.NotNil(t, fetched.Data.ProviderTransactionID)
	assert.Equal(t, testProviderTx, *fetched.Data.ProviderTransactionID)
	assert.NotNil(t, fetched.Data.PaymentVerifiedAt)

	// once paid, the order is not sent back to the provider
	assert.Equal(t, int64(2), atomic.LoadInt64(&flw.calls))

	// health and readiness
	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, api.URL+"/ready", nil, nil, nil))
}
