package pix

import (
	"context"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T, autoApprove time.Duration) *SandboxGateway {
	t.Helper()
	gw, err := NewSandboxGateway(SandboxConfig{
		PixKey:       "loja@gamekeys.dev",
		MerchantName: "GAMEKEYS",
		MerchantCity: "SAO PAULO",
		AutoApprove:  autoApprove,
	})
	require.NoError(t, err)
	return gw
}

func newChargeRequest() payment.CreateChargeRequest {
	return payment.CreateChargeRequest{
		OrderID:        uuid.New(),
		OrderNumber:    "GK-20260105-ABC234",
		Amount:         decimal.RequireFromString("149.90"),
		ExpiresAt:      time.Now().Add(30 * time.Minute),
		IdempotencyKey: uuid.NewString(),
	}
}

func TestNewSandboxGateway_RequiresPixKey(t *testing.T) {
	_, err := NewSandboxGateway(SandboxConfig{})
	assert.Error(t, err)
}

func TestSandboxGateway_CreateCharge(t *testing.T) {
	gw := newTestSandbox(t, 0)
	ctx := context.Background()
	req := newChargeRequest()

	charge, err := gw.CreateCharge(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, payment.ProviderSandbox, charge.Provider)
	assert.Contains(t, charge.ChargeID, sandboxChargePrefix)
	assert.Equal(t, payment.ProviderStatusPending, charge.Status)
	assert.True(t, charge.Amount.Equal(req.Amount))
	assert.Equal(t, req.OrderID.String(), charge.ExternalRef)
	assert.True(t, VerifyPayload(charge.QRCode))
	assert.Contains(t, charge.QRCode, "5406149.90")

	t.Run("same idempotency key returns the same charge", func(t *testing.T) {
		again, err := gw.CreateCharge(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, charge.ChargeID, again.ChargeID)
	})

	t.Run("new key creates a new charge", func(t *testing.T) {
		req2 := req
		req2.IdempotencyKey = uuid.NewString()
		other, err := gw.CreateCharge(ctx, req2)
		require.NoError(t, err)
		assert.NotEqual(t, charge.ChargeID, other.ChargeID)
	})

	t.Run("invalid request", func(t *testing.T) {
		bad := req
		bad.Amount = decimal.Zero
		_, err := gw.CreateCharge(ctx, bad)
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)
	})
}

func TestSandboxGateway_ApproveReject(t *testing.T) {
	gw := newTestSandbox(t, 0)
	ctx := context.Background()

	charge, err := gw.CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)

	approved, err := gw.Approve(charge.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderStatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	fetched, err := gw.GetCharge(ctx, charge.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderStatusApproved, fetched.Status)

	_, err = gw.Reject(charge.ChargeID, "")
	assert.ErrorIs(t, err, payment.ErrGatewayRequestFailed)

	_, err = gw.Approve("sbx_missing")
	assert.ErrorIs(t, err, payment.ErrChargeNotFound)

	second, err := gw.CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)
	rejected, err := gw.Reject(second.ChargeID, "")
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderStatusRejected, rejected.Status)
	assert.Equal(t, "rejected_by_bank", rejected.StatusDetail)
}

func TestSandboxGateway_GetChargeTransitions(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	t.Run("auto approve", func(t *testing.T) {
		gw := newTestSandbox(t, time.Minute)
		now := base
		gw.now = func() time.Time { return now }

		charge, err := gw.CreateCharge(ctx, newChargeRequest())
		require.NoError(t, err)

		fetched, err := gw.GetCharge(ctx, charge.ChargeID)
		require.NoError(t, err)
		assert.Equal(t, payment.ProviderStatusPending, fetched.Status)

		now = base.Add(2 * time.Minute)
		fetched, err = gw.GetCharge(ctx, charge.ChargeID)
		require.NoError(t, err)
		assert.Equal(t, payment.ProviderStatusApproved, fetched.Status)
	})

	t.Run("expires", func(t *testing.T) {
		gw := newTestSandbox(t, 0)
		now := base
		gw.now = func() time.Time { return now }

		req := newChargeRequest()
		req.ExpiresAt = base.Add(10 * time.Minute)
		charge, err := gw.CreateCharge(ctx, req)
		require.NoError(t, err)

		now = base.Add(11 * time.Minute)
		fetched, err := gw.GetCharge(ctx, charge.ChargeID)
		require.NoError(t, err)
		assert.Equal(t, payment.ProviderStatusRejected, fetched.Status)
		assert.Equal(t, "expired", fetched.StatusDetail)
	})

	t.Run("unknown charge", func(t *testing.T) {
		gw := newTestSandbox(t, 0)
		_, err := gw.GetCharge(ctx, "nope")
		assert.ErrorIs(t, err, payment.ErrChargeNotFound)
	})
}

func TestSandboxGateway_CancelCharge(t *testing.T) {
	gw := newTestSandbox(t, 0)
	ctx := context.Background()

	charge, err := gw.CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)
	require.NoError(t, gw.CancelCharge(ctx, charge.ChargeID))

	fetched, err := gw.GetCharge(ctx, charge.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, payment.ProviderStatusRejected, fetched.Status)

	// Cancelling a final charge is a no-op
	require.NoError(t, gw.CancelCharge(ctx, charge.ChargeID))
	assert.ErrorIs(t, gw.CancelCharge(ctx, "nope"), payment.ErrChargeNotFound)
}

func TestSandboxGateway_ParseWebhook(t *testing.T) {
	gw := newTestSandbox(t, 0)
	ctx := context.Background()

	charge, err := gw.CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)

	n, err := gw.ParseWebhook(ctx, payment.WebhookRequest{
		Body: []byte(`{"id":"evt-1","charge_id":"` + charge.ChargeID + `","action":"payment.updated"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", n.NotificationID)
	assert.Equal(t, charge.ChargeID, n.ChargeID)
	assert.Equal(t, "payment.updated", n.Action)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing id", `{"charge_id":"` + charge.ChargeID + `"}`},
		{"unknown charge", `{"id":"evt-2","charge_id":"sbx_unknown"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.ParseWebhook(ctx, payment.WebhookRequest{Body: []byte(tt.body)})
			assert.ErrorIs(t, err, payment.ErrInvalidWebhook)
		})
	}
}
