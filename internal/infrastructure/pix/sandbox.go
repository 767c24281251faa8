package pix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/google/uuid"
)

const sandboxChargePrefix = "sbx_"

// SandboxConfig configures the local PIX simulator
type SandboxConfig struct {
	PixKey       string
	MerchantName string
	MerchantCity string
	// AutoApprove approves pending charges on read once they are this old; 0 disables it
	AutoApprove time.Duration
}

// SandboxGateway is an in-process PIX provider. Charges carry a valid BR Code
// payload but are only settled by Approve/Reject (or AutoApprove).
type SandboxGateway struct {
	config  SandboxConfig
	mu      sync.RWMutex
	charges map[string]*sandboxCharge
	now     func() time.Time
}

type sandboxCharge struct {
	charge         payment.Charge
	idempotencyKey string
	createdAt      time.Time
}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway(cfg SandboxConfig) (*SandboxGateway, error) {
	if cfg.PixKey == "" {
		return nil, fmt.Errorf("sandbox: pix key is required")
	}
	return &SandboxGateway{
		config:  cfg,
		charges: make(map[string]*sandboxCharge),
		now:     time.Now,
	}, nil
}

// Provider returns the sandbox provider
func (g *SandboxGateway) Provider() payment.Provider {
	return payment.ProviderSandbox
}

// CreateCharge creates a pending charge. Repeating a request with the same
// idempotency key returns the charge created first.
func (g *SandboxGateway) CreateCharge(ctx context.Context, req payment.CreateChargeRequest) (*payment.Charge, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		for _, c := range g.charges {
			if c.idempotencyKey == req.IdempotencyKey {
				out := c.charge
				return &out, nil
			}
		}
	}

	id := sandboxChargePrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
	code := BRCode{
		PixKey:       g.config.PixKey,
		MerchantName: g.config.MerchantName,
		MerchantCity: g.config.MerchantCity,
		Amount:       req.Amount,
		TxID:         strings.ReplaceAll(req.OrderNumber, "-", ""),
		SingleUse:    true,
	}
	payload, err := code.Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayRequestFailed, err)
	}

	now := g.now()
	charge := payment.Charge{
		Provider:     payment.ProviderSandbox,
		ChargeID:     id,
		Status:       payment.ProviderStatusPending,
		StatusDetail: "pending_waiting_transfer",
		Amount:       req.Amount,
		QRCode:       payload,
		ExpiresAt:    req.ExpiresAt,
		ExternalRef:  req.OrderID.String(),
	}
	g.charges[id] = &sandboxCharge{charge: charge, idempotencyKey: req.IdempotencyKey, createdAt: now}

	out := charge
	return &out, nil
}

// GetCharge returns the current state of a charge
func (g *SandboxGateway) GetCharge(ctx context.Context, chargeID string) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[chargeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payment.ErrChargeNotFound, chargeID)
	}

	now := g.now()
	if c.charge.Status == payment.ProviderStatusPending {
		switch {
		case g.config.AutoApprove > 0 && now.Sub(c.createdAt) >= g.config.AutoApprove:
			c.settle(payment.ProviderStatusApproved, "accredited", now)
		case !c.charge.ExpiresAt.IsZero() && now.After(c.charge.ExpiresAt):
			c.settle(payment.ProviderStatusRejected, "expired", now)
		}
	}

	out := c.charge
	return &out, nil
}

// CancelCharge rejects a pending charge. Final charges are left as they are.
func (g *SandboxGateway) CancelCharge(ctx context.Context, chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[chargeID]
	if !ok {
		return fmt.Errorf("%w: %s", payment.ErrChargeNotFound, chargeID)
	}
	if c.charge.Status == payment.ProviderStatusPending {
		c.settle(payment.ProviderStatusRejected, "cancelled", g.now())
	}
	return nil
}

// Approve simulates the payer completing the transfer
func (g *SandboxGateway) Approve(chargeID string) (*payment.Charge, error) {
	return g.resolve(chargeID, payment.ProviderStatusApproved, "accredited")
}

// Reject simulates the provider refusing the transfer
func (g *SandboxGateway) Reject(chargeID string, reason string) (*payment.Charge, error) {
	if reason == "" {
		reason = "rejected_by_bank"
	}
	return g.resolve(chargeID, payment.ProviderStatusRejected, reason)
}

func (g *SandboxGateway) resolve(chargeID string, status payment.ProviderStatus, detail string) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[chargeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payment.ErrChargeNotFound, chargeID)
	}
	if c.charge.Status.IsFinal() {
		return nil, fmt.Errorf("%w: charge %s is already %s", payment.ErrGatewayRequestFailed, chargeID, c.charge.Status)
	}
	c.settle(status, detail, g.now())

	out := c.charge
	return &out, nil
}

func (c *sandboxCharge) settle(status payment.ProviderStatus, detail string, at time.Time) {
	c.charge.Status = status
	c.charge.StatusDetail = detail
	if status == payment.ProviderStatusApproved {
		c.charge.ApprovedAt = &at
	}
}

type sandboxNotification struct {
	ID       string `json:"id"`
	ChargeID string `json:"charge_id"`
	Action   string `json:"action"`
}

// ParseWebhook accepts {"id": "...", "charge_id": "...", "action": "..."} for a known charge
func (g *SandboxGateway) ParseWebhook(ctx context.Context, req payment.WebhookRequest) (*payment.WebhookNotification, error) {
	var n sandboxNotification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	if n.ID == "" || n.ChargeID == "" {
		return nil, fmt.Errorf("%w: id and charge_id are required", payment.ErrInvalidWebhook)
	}

	g.mu.RLock()
	_, ok := g.charges[n.ChargeID]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown charge %s", payment.ErrInvalidWebhook, n.ChargeID)
	}

	return &payment.WebhookNotification{
		NotificationID: n.ID,
		ChargeID:       n.ChargeID,
		Action:         n.Action,
	}, nil
}

var _ payment.PixGateway = (*SandboxGateway)(nil)
