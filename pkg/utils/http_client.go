package utils

import (
	"net"
	"net/http"
	"time"
)

// Defaults tuned for calls to the payment provider's public API.
const (
	defaultClientTimeout         = 20 * time.Second // absolute deadline for the whole request
	defaultResponseHeaderTimeout = 15 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second

	defaultMaxConnsPerHost     = 32
	defaultMaxIdleConnsPerHost = 16

	defaultDialerTimeout   = 5 * time.Second
	defaultDialerKeepAlive = 30 * time.Second
)

// ClientConfig captures tunables for the HTTP client/transport.
// Zero values are replaced by defaults.
type ClientConfig struct {
	ClientTimeout         time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	MaxConnsPerHost       int
	MaxIdleConnsPerHost   int
	DialerTimeout         time.Duration
	DialerKeepAlive       time.Duration
}

type ClientOption func(*ClientConfig)

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.ClientTimeout = d }
}
func WithMaxConnsPerHost(n int) ClientOption {
	return func(c *ClientConfig) { c.MaxConnsPerHost = n }
}

// NewHTTPClient builds an *http.Client whose every request is bounded by ClientTimeout.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := ClientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	sanitizeClientConfig(&cfg)

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialerTimeout,
			KeepAlive: cfg.DialerKeepAlive,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: tr, Timeout: cfg.ClientTimeout}
}

func sanitizeClientConfig(c *ClientConfig) {
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = defaultClientTimeout
	}
	if c.ResponseHeaderTimeout <= 0 || c.ResponseHeaderTimeout > c.ClientTimeout {
		c.ResponseHeaderTimeout = min(defaultResponseHeaderTimeout, c.ClientTimeout)
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = defaultTLSHandshakeTimeout
	}
	if c.DialerTimeout <= 0 {
		c.DialerTimeout = defaultDialerTimeout
	}
	if c.DialerKeepAlive <= 0 {
		c.DialerKeepAlive = defaultDialerKeepAlive
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
}
