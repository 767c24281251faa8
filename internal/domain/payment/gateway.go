package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway errors
var (
	ErrInvalidAmount         = errors.New("payment: amount must be positive")
	ErrInvalidOrderReference = errors.New("payment: order reference is required")
	ErrGatewayUnavailable    = errors.New("payment: gateway unavailable")
	ErrGatewayRequestFailed  = errors.New("payment: gateway request failed")
	ErrChargeNotFound        = errors.New("payment: charge not found")
	ErrInvalidWebhook        = errors.New("payment: invalid webhook notification")
	ErrWebhookSignature      = errors.New("payment: webhook signature mismatch")
	ErrProviderNotConfigured = errors.New("payment: provider not configured")
)

// Provider identifies a PIX payment provider implementation
type Provider string

const (
	ProviderMercadoPago Provider = "mercadopago"
	ProviderSandbox     Provider = "sandbox"
)

// IsValid checks if the provider is known
func (p Provider) IsValid() bool {
	return p == ProviderMercadoPago || p == ProviderSandbox
}

// ProviderStatus is the provider's view of a charge. Providers report many
// intermediate states; adapters collapse them into these three values.
type ProviderStatus string

const (
	ProviderStatusPending  ProviderStatus = "pending"
	ProviderStatusApproved ProviderStatus = "approved"
	ProviderStatusRejected ProviderStatus = "rejected"
)

// IsValid checks if the status is one of the three known values
func (s ProviderStatus) IsValid() bool {
	switch s {
	case ProviderStatusPending, ProviderStatusApproved, ProviderStatusRejected:
		return true
	}
	return false
}

// IsFinal returns true once the provider will not change the status any more
func (s ProviderStatus) IsFinal() bool {
	return s == ProviderStatusApproved || s == ProviderStatusRejected
}

// Charge is a PIX charge as returned by a provider
type Charge struct {
	Provider     Provider
	ChargeID     string
	Status       ProviderStatus
	StatusDetail string
	Amount       decimal.Decimal
	QRCode       string // "copia e cola" EMV payload
	QRCodeBase64 string // PNG image of QRCode
	TicketURL    string
	ExpiresAt    time.Time
	ApprovedAt   *time.Time
	ExternalRef  string
}

// Payer identifies who is paying. TaxID is a CPF, digits only.
type Payer struct {
	Email     string
	FirstName string
	LastName  string
	TaxID     string
}

// SplitName splits a full name into first and last name
func SplitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// CreateChargeRequest asks a provider for a new PIX charge
type CreateChargeRequest struct {
	OrderID         uuid.UUID
	OrderNumber     string
	Amount          decimal.Decimal
	Description     string
	Payer           Payer
	ExpiresAt       time.Time
	IdempotencyKey  string
	NotificationURL string
}

// Validate checks the request before it is sent
func (r *CreateChargeRequest) Validate() error {
	if r.OrderID == uuid.Nil || r.OrderNumber == "" {
		return ErrInvalidOrderReference
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// WebhookNotification is a verified provider notification. It only tells which
// charge changed; the current status is always re-fetched with GetCharge.
type WebhookNotification struct {
	NotificationID string
	ChargeID       string
	Action         string
}

// WebhookRequest carries the raw notification as received over HTTP
type WebhookRequest struct {
	Body    []byte
	Headers map[string]string
	Query   map[string]string
}

// Header returns a header value, matching the name case-insensitively
func (r WebhookRequest) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// PixGateway is the port every PIX provider adapter implements
type PixGateway interface {
	// Provider returns the provider implemented by the adapter
	Provider() Provider

	// CreateCharge creates a PIX charge with QR code data
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error)

	// GetCharge fetches the current state of a charge
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)

	// CancelCharge cancels a pending charge. Cancelling a charge that is already
	// final is not an error.
	CancelCharge(ctx context.Context, chargeID string) error

	// ParseWebhook verifies and parses an incoming notification
	ParseWebhook(ctx context.Context, req WebhookRequest) (*WebhookNotification, error)
}

// GatewayRegistry provides access to the configured PIX providers
type GatewayRegistry interface {
	// Active returns the gateway new charges are created with
	Active() PixGateway

	// Get returns the gateway for a provider, or ErrProviderNotConfigured
	Get(provider Provider) (PixGateway, error)
}
