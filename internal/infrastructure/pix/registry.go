package pix

import (
	"fmt"
	"strings"

	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// WebhookPath is the route providers post notifications to, relative to the app base URL
const WebhookPath = "/api/v1/payments/webhook/"

// Registry holds the configured PIX gateways
type Registry struct {
	active   payment.Provider
	gateways map[payment.Provider]payment.PixGateway
	sandbox  *SandboxGateway
}

// RegistryOption configures NewRegistry
type RegistryOption func(*registryOptions)

type registryOptions struct {
	observer GatewayObserver
	qrSize   int
}

// WithGatewayObserver reports every provider call to observer
func WithGatewayObserver(observer GatewayObserver) RegistryOption {
	return func(o *registryOptions) {
		o.observer = observer
	}
}

// WithQRCodeSize sets the edge length of locally rendered QR codes
func WithQRCodeSize(size int) RegistryOption {
	return func(o *registryOptions) {
		o.qrSize = size
	}
}

// NewRegistry builds the gateway selected by cfg.Provider. baseURL is the
// public app URL used to build notification callbacks.
func NewRegistry(cfg config.PaymentConfig, baseURL string, logger *zap.Logger, opts ...RegistryOption) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := registryOptions{qrSize: DefaultQRCodeSize}
	for _, opt := range opts {
		opt(&options)
	}
	wrap := func(gw payment.PixGateway) payment.PixGateway {
		return WithObserver(WithQRCodeImages(gw, options.qrSize), options.observer)
	}

	r := &Registry{
		active:   payment.Provider(cfg.Provider),
		gateways: make(map[payment.Provider]payment.PixGateway),
	}

	switch r.active {
	case payment.ProviderMercadoPago:
		mp, err := NewMercadoPagoAdapter(&MercadoPagoConfig{
			AccessToken:       cfg.MercadoPago.AccessToken,
			BaseURL:           cfg.MercadoPago.BaseURL,
			WebhookSecret:     cfg.MercadoPago.WebhookSecret,
			NotificationURL:   NotificationURL(baseURL, payment.ProviderMercadoPago),
			Timeout:           cfg.MercadoPago.Timeout,
			RequestsPerSecond: cfg.MercadoPago.RequestsPerSec,
		}, logger.Named("mercadopago"))
		if err != nil {
			return nil, err
		}
		r.gateways[payment.ProviderMercadoPago] = wrap(mp)
	case payment.ProviderSandbox:
		sb, err := NewSandboxGateway(SandboxConfig{
			PixKey:       cfg.Sandbox.PixKey,
			MerchantName: cfg.Sandbox.MerchantName,
			MerchantCity: cfg.Sandbox.MerchantCity,
			AutoApprove:  cfg.Sandbox.AutoApprove,
		})
		if err != nil {
			return nil, err
		}
		r.sandbox = sb
		r.gateways[payment.ProviderSandbox] = wrap(sb)
	default:
		return nil, fmt.Errorf("%w: %q", payment.ErrProviderNotConfigured, cfg.Provider)
	}

	logger.Info("PIX gateway configured", zap.String("provider", string(r.active)))
	return r, nil
}

// NewRegistryWith builds a registry around existing gateways; the first one is active
func NewRegistryWith(gateways ...payment.PixGateway) *Registry {
	r := &Registry{gateways: make(map[payment.Provider]payment.PixGateway)}
	for i, gw := range gateways {
		if i == 0 {
			r.active = gw.Provider()
		}
		if sb, ok := gw.(*SandboxGateway); ok {
			r.sandbox = sb
		}
		r.gateways[gw.Provider()] = gw
	}
	return r
}

// Active returns the gateway new charges are created with
func (r *Registry) Active() payment.PixGateway {
	return r.gateways[r.active]
}

// Get returns the gateway for a provider
func (r *Registry) Get(provider payment.Provider) (payment.PixGateway, error) {
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payment.ErrProviderNotConfigured, provider)
	}
	return gw, nil
}

// Sandbox returns the sandbox gateway when it is configured
func (r *Registry) Sandbox() (*SandboxGateway, bool) {
	return r.sandbox, r.sandbox != nil
}

// NotificationURL returns the webhook URL for a provider
func NotificationURL(baseURL string, provider payment.Provider) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + WebhookPath + string(provider)
}

var _ payment.GatewayRegistry = (*Registry)(nil)
