package pix

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQRCode(t *testing.T) {
	img, err := RenderQRCode("00020126580014br.gov.bcb.pix", 128)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(img)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())

	_, err = RenderQRCode("", 128)
	assert.Error(t, err)
}

func TestWithQRCodeImages(t *testing.T) {
	sb := newTestSandbox(t, 0)
	gw := WithQRCodeImages(sb, 0)
	ctx := context.Background()

	charge, err := gw.CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, charge.QRCodeBase64)

	fetched, err := gw.GetCharge(ctx, charge.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, charge.QRCodeBase64, fetched.QRCodeBase64)
	assert.Equal(t, payment.ProviderSandbox, gw.Provider())
}

func TestNewRegistry(t *testing.T) {
	t.Run("sandbox", func(t *testing.T) {
		r, err := NewRegistry(config.PaymentConfig{
			Provider: "sandbox",
			Sandbox:  config.SandboxConfig{PixKey: "loja@gamekeys.dev"},
		}, "http://localhost:8080", nil)
		require.NoError(t, err)

		assert.Equal(t, payment.ProviderSandbox, r.Active().Provider())
		sb, ok := r.Sandbox()
		assert.True(t, ok)
		assert.NotNil(t, sb)

		_, err = r.Get(payment.ProviderMercadoPago)
		assert.ErrorIs(t, err, payment.ErrProviderNotConfigured)
	})

	t.Run("mercadopago", func(t *testing.T) {
		r, err := NewRegistry(config.PaymentConfig{
			Provider:    "mercadopago",
			MercadoPago: config.MercadoPagoConfig{AccessToken: "TEST-1"},
		}, "https://shop.example.com/", nil)
		require.NoError(t, err)

		gw, err := r.Get(payment.ProviderMercadoPago)
		require.NoError(t, err)
		assert.Equal(t, payment.ProviderMercadoPago, gw.Provider())
		_, ok := r.Sandbox()
		assert.False(t, ok)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := NewRegistry(config.PaymentConfig{Provider: "mercadopago"}, "", nil)
		assert.ErrorIs(t, err, ErrMercadoPagoMissingToken)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewRegistry(config.PaymentConfig{Provider: "stripe"}, "", nil)
		assert.ErrorIs(t, err, payment.ErrProviderNotConfigured)
	})
}

func TestNewRegistryWith(t *testing.T) {
	sb := newTestSandbox(t, 0)
	r := NewRegistryWith(sb)

	assert.Same(t, sb, r.Active())
	got, ok := r.Sandbox()
	assert.True(t, ok)
	assert.Same(t, sb, got)
}

func TestNotificationURL(t *testing.T) {
	assert.Equal(t, "https://shop.example.com/api/v1/payments/webhook/mercadopago",
		NotificationURL("https://shop.example.com/", payment.ProviderMercadoPago))
	assert.Empty(t, NotificationURL("", payment.ProviderSandbox))
}

type callRecorder struct {
	calls []string
}

func (r *callRecorder) ObserveGatewayCall(provider, operation string, _ time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.calls = append(r.calls, provider+":"+operation+":"+outcome)
}

func TestNewRegistry_WithGatewayObserver(t *testing.T) {
	rec := &callRecorder{}
	r, err := NewRegistry(config.PaymentConfig{
		Provider: "sandbox",
		Sandbox:  config.SandboxConfig{PixKey: "loja@gamekeys.dev"},
	}, "", nil, WithGatewayObserver(rec), WithQRCodeSize(64))
	require.NoError(t, err)

	ctx := context.Background()
	charge, err := r.Active().CreateCharge(ctx, newChargeRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, charge.QRCodeBase64)

	_, err = r.Active().GetCharge(ctx, "sbx_missing")
	assert.ErrorIs(t, err, payment.ErrChargeNotFound)
	require.NoError(t, r.Active().CancelCharge(ctx, charge.ChargeID))

	assert.Equal(t, []string{
		"sandbox:create_charge:ok",
		"sandbox:get_charge:error",
		"sandbox:cancel_charge:ok",
	}, rec.calls)
}

func TestWithObserver_Nil(t *testing.T) {
	sb := newTestSandbox(t, 0)
	assert.Same(t, sb, WithObserver(sb, nil))
}
