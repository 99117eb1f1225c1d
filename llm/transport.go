package llm

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultRequestTimeout bounds a single HTTP request to a provider API.
const DefaultRequestTimeout = 120 * time.Second

// TransportConfig holds the outbound connection settings shared by every
// client in a credential pool.
type TransportConfig struct {
	BaseURL  string        // If empty, the provider's default endpoint is used
	ProxyURL string        // If empty, requests go out directly
	Timeout  time.Duration // Per-request timeout, DefaultRequestTimeout if zero
}

// Validate checks the base URL and proxy address.
func (c TransportConfig) Validate() error {
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return NewInvalidConfigurationError("invalid base url %q", c.BaseURL)
		}
	}
	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Host == "" {
			return NewInvalidConfigurationError("invalid proxy url %q", c.ProxyURL)
		}
	}
	return nil
}

// NewHTTPClient creates an HTTP client with connection timeouts and the
// configured proxy, if any. Call Validate first.
func (c TransportConfig) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second, // connect timeout
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if c.ProxyURL != "" {
		if proxy, err := url.Parse(c.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
