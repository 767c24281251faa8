package pix

import (
	"errors"
	"net/url"
	"time"
)

const (
	mercadoPagoDefaultBaseURL = "https://api.mercadopago.com"
	mercadoPagoDefaultTimeout = 10 * time.Second
	mercadoPagoDefaultRPS     = 10
)

// MercadoPagoConfig contains configuration for the Mercado Pago payments API
type MercadoPagoConfig struct {
	// AccessToken is the seller's private access token (APP_USR-... or TEST-...)
	AccessToken string
	// BaseURL is the API root, overridable for tests
	BaseURL string
	// WebhookSecret is the key used to sign x-signature headers. Empty disables verification.
	WebhookSecret string
	// NotificationURL is where Mercado Pago posts payment notifications
	NotificationURL string
	// Timeout bounds every API call
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
}

// Errors for configuration validation
var (
	ErrMercadoPagoMissingToken   = errors.New("mercadopago: missing access token")
	ErrMercadoPagoInvalidBaseURL = errors.New("mercadopago: invalid base URL")
	ErrMercadoPagoInvalidRate    = errors.New("mercadopago: requests per second must be positive")
)

// Validate validates the configuration
func (c *MercadoPagoConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrMercadoPagoMissingToken
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrMercadoPagoInvalidBaseURL
		}
	}
	if c.RequestsPerSecond < 0 {
		return ErrMercadoPagoInvalidRate
	}
	return nil
}

func (c *MercadoPagoConfig) withDefaults() MercadoPagoConfig {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = mercadoPagoDefaultBaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = mercadoPagoDefaultTimeout
	}
	if out.RequestsPerSecond == 0 {
		out.RequestsPerSecond = mercadoPagoDefaultRPS
	}
	if out.Burst <= 0 {
		out.Burst = max(1, int(out.RequestsPerSecond))
	}
	return out
}
