package order

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReconcileAwaitingPayment asks the provider about orders still awaiting
// payment, covering webhooks that never arrived. Returns how many orders left
// awaiting_payment.
func (s *Service) ReconcileAwaitingPayment(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.FindAwaitingPayment(ctx, s.batchSize())
	if err != nil {
		return 0, err
	}

	workers := s.config.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		g       errgroup.Group
		settled atomic.Int64
		now     = time.Now()
	)
	g.SetLimit(workers)

	for i := range orders {
		o := &orders[i]
		if o.Payment.LastCheckedAt != nil && now.Sub(*o.Payment.LastCheckedAt) < s.config.MinCheckInterval {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			charge, err := s.fetchCharge(ctx, o)
			if err != nil {
				s.logger.Warn("Reconcile: failed to fetch charge",
					zap.String("order_id", o.ID.String()),
					zap.String("charge_id", o.Payment.ChargeID),
					zap.Error(err))
				return nil
			}
			updated, err := s.settle(ctx, o.ID, charge)
			if err != nil {
				s.logger.Warn("Reconcile: failed to apply charge status",
					zap.String("order_id", o.ID.String()),
					zap.Error(err))
				return nil
			}
			if updated.Status != order.StatusAwaitingPayment {
				settled.Add(1)
			}
			return nil
		})
	}
	// Workers never fail; per-order errors are logged
	_ = g.Wait()

	if n := settled.Load(); n > 0 {
		s.logger.Info("Reconciled awaiting orders",
			zap.Int("checked", len(orders)),
			zap.Int64("settled", n))
	}
	return int(settled.Load()), ctx.Err()
}

// ExpireOrders closes unpaid orders past their reservation deadline and
// releases their keys. An order whose charge turns out to be approved is
// delivered instead.
func (s *Service) ExpireOrders(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.FindExpired(ctx, time.Now(), s.batchSize())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		o := &orders[i]

		if o.Status == order.StatusAwaitingPayment && o.Payment.HasCharge() {
			charge, err := s.fetchCharge(ctx, o)
			if err != nil && !errors.Is(err, payment.ErrChargeNotFound) {
				// Without the provider's answer the order must not be expired
				s.logger.Warn("Expiry: failed to fetch charge, will retry",
					zap.String("order_id", o.ID.String()),
					zap.Error(err))
				continue
			}
			if err == nil && charge.Status == payment.ProviderStatusApproved {
				if _, err := s.settle(ctx, o.ID, charge); err != nil {
					s.logger.Warn("Expiry: failed to settle approved charge",
						zap.String("order_id", o.ID.String()),
						zap.Error(err))
				}
				continue
			}
		}

		closed, err := s.close(ctx, o.ID, (*order.Order).Expire)
		if err != nil {
			s.logger.Warn("Failed to expire order",
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
			continue
		}
		s.cancelCharge(ctx, closed)
		expired++
	}

	if expired > 0 {
		s.logger.Info("Expired unpaid orders", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *Service) batchSize() int {
	if s.config.BatchSize <= 0 {
		return 100
	}
	return s.config.BatchSize
}
