// Package flutterwave talks to the Flutterwave v3 transaction verification API.
package flutterwave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.flutterwave.com/v3"
	DefaultTimeout = 20 * time.Second

	maxBodyBytes = 1 << 20
)

// Verifier asks the provider whether a payment really happened.
// Errors wrapping pkg.ErrVerificationUnavailable mean the provider could not be asked;
// a well-formed negative answer comes back as OK=false with a nil error.
type Verifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (VerificationResult, error)
	VerifyByReference(ctx context.Context, txRef string) (VerificationResult, error)
}

type ClientConfig struct {
	Logger    *zap.Logger
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

type Client struct {
	logger     *zap.Logger
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.NewHTTPClient(utils.WithClientTimeout(timeout))
	}
	return &Client{
		logger:     cfg.Logger,
		baseURL:    baseURL,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
	}
}

// VerifyTransaction calls GET /transactions/{id}/verify.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (VerificationResult, error) {
	if utils.IsEmpty(transactionID) {
		return VerificationResult{}, fmt.Errorf("transaction id is required")
	}
	endpoint := fmt.Sprintf("%s/transactions/%s/verify", c.baseURL, url.PathEscape(transactionID))
	return c.verify(ctx, endpoint, zap.String(pkg.TransactionId, transactionID))
}

// VerifyByReference calls GET /transactions/verify_by_reference?tx_ref=...
func (c *Client) VerifyByReference(ctx context.Context, txRef string) (VerificationResult, error) {
	if utils.IsEmpty(txRef) {
		return VerificationResult{}, fmt.Errorf("tx ref is required")
	}
	endpoint := fmt.Sprintf("%s/transactions/verify_by_reference?tx_ref=%s", c.baseURL, url.QueryEscape(txRef))
	return c.verify(ctx, endpoint, zap.String(pkg.TxRef, txRef))
}

func (c *Client) verify(ctx context.Context, endpoint string, field zap.Field) (VerificationResult, error) {
	if utils.IsEmpty(c.secretKey) {
		return VerificationResult{}, fmt.Errorf("%w: provider secret key not configured", pkg.ErrVerificationUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%w: build request: %v", pkg.ErrVerificationUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("provider_request_failed", field, zap.Error(err))
		return VerificationResult{}, fmt.Errorf("%w: %v", pkg.ErrVerificationUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%w: read body: %v", pkg.ErrVerificationUnavailable, err)
	}
	c.logger.Debug("provider_response", field, zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return VerificationResult{}, fmt.Errorf("%w: provider returned %d", pkg.ErrVerificationUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		c.logger.Error("provider_rejected_credentials", field, zap.Int("status", resp.StatusCode))
		return VerificationResult{}, fmt.Errorf("%w: provider rejected credentials (%d)", pkg.ErrVerificationUnavailable, resp.StatusCode)
	}

	var env verifyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return VerificationResult{}, fmt.Errorf("%w: decode body: %v", pkg.ErrVerificationUnavailable, err)
	}
	if env.Status == "" {
		return VerificationResult{}, fmt.Errorf("%w: response has no status (http %d)", pkg.ErrVerificationUnavailable, resp.StatusCode)
	}
	return normalize(env, body), nil
}

func normalize(env verifyEnvelope, body []byte) VerificationResult {
	result := VerificationResult{Raw: json.RawMessage(body)}
	if env.Data != nil {
		result.TransactionID = env.Data.ID.String()
		result.TxRef = env.Data.TxRef
		result.Amount = env.Data.Amount
		result.Currency = strings.ToUpper(env.Data.Currency)
		result.ProviderStatus = env.Data.Status
	}
	if env.Status == envelopeSuccess && env.Data != nil && env.Data.Status == transactionPaidOK {
		result.OK = true
		return result
	}
	switch {
	case env.Data != nil && env.Data.Status != "":
		result.Reason = fmt.Sprintf("provider status %q is not successful", env.Data.Status)
	case env.Message != "":
		result.Reason = env.Message
	default:
		result.Reason = fmt.Sprintf("provider status %q is not successful", env.Status)
	}
	return result
}
