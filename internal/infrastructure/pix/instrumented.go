package pix

import (
	"context"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
)

// GatewayObserver receives the outcome of every provider call
type GatewayObserver interface {
	ObserveGatewayCall(provider, operation string, duration time.Duration, err error)
}

type observedGateway struct {
	payment.PixGateway
	observer GatewayObserver
}

// WithObserver wraps a gateway so each call is reported to observer
func WithObserver(gw payment.PixGateway, observer GatewayObserver) payment.PixGateway {
	if observer == nil {
		return gw
	}
	return &observedGateway{PixGateway: gw, observer: observer}
}

func (g *observedGateway) observe(op string, start time.Time, err error) {
	g.observer.ObserveGatewayCall(string(g.Provider()), op, time.Since(start), err)
}

func (g *observedGateway) CreateCharge(ctx context.Context, req payment.CreateChargeRequest) (*payment.Charge, error) {
	start := time.Now()
	charge, err := g.PixGateway.CreateCharge(ctx, req)
	g.observe("create_charge", start, err)
	return charge, err
}

func (g *observedGateway) GetCharge(ctx context.Context, chargeID string) (*payment.Charge, error) {
	start := time.Now()
	charge, err := g.PixGateway.GetCharge(ctx, chargeID)
	g.observe("get_charge", start, err)
	return charge, err
}

func (g *observedGateway) CancelCharge(ctx context.Context, chargeID string) error {
	start := time.Now()
	err := g.PixGateway.CancelCharge(ctx, chargeID)
	g.observe("cancel_charge", start, err)
	return err
}
