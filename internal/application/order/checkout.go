package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/gamekeys/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Webhook outcomes reported to metrics
const (
	WebhookProcessed     = "processed"
	WebhookDuplicate     = "duplicate"
	WebhookRejected      = "rejected"
	WebhookUnknownCharge = "unknown_charge"
	WebhookFailed        = "failed"
)

// StartCheckout creates a PIX charge for the order total and moves the order
// to awaiting_payment. An order that already has a payable charge returns it
// unchanged.
func (s *Service) StartCheckout(ctx context.Context, userID, orderID uuid.UUID) (*Response, error) {
	release, err := s.lock(ctx, "checkout:"+orderID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := s.orderRepo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if o.HasOpenCharge(now) {
		resp := ToResponse(o)
		return &resp, nil
	}
	if o.IsExpired(now) {
		return nil, shared.NewDomainError("ORDER_EXPIRED", "Order reservation has expired")
	}
	staleCharge := ""
	if o.Status == order.StatusAwaitingPayment {
		// The previous charge expired before the reservation did. It may
		// still have been paid, so the provider decides before it is replaced.
		settled, err := s.settleStaleCharge(ctx, o)
		if err != nil {
			return nil, err
		}
		if settled != nil {
			resp := ToResponse(settled)
			return &resp, nil
		}
		staleCharge = o.Payment.ChargeID
	} else if !o.Status.CanTransitionTo(order.StatusAwaitingPayment) {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot start payment for order in %s status", o.Status))
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.config.ChargeTTL)
	if s.config.ChargeTTL <= 0 || o.ExpiresAt.Before(expiresAt) {
		expiresAt = o.ExpiresAt
	}
	firstName, lastName := payment.SplitName(user.Name)

	gateway := s.gateways.Active()
	charge, err := gateway.CreateCharge(ctx, payment.CreateChargeRequest{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Amount:      o.Total,
		Description: fmt.Sprintf("Pedido %s", o.Number),
		Payer: payment.Payer{
			Email:     user.Email,
			FirstName: firstName,
			LastName:  lastName,
			TaxID:     user.TaxID,
		},
		ExpiresAt:      expiresAt,
		IdempotencyKey: fmt.Sprintf("%s-%d", o.ID, o.Payment.Attempts+1),
	})
	if err != nil {
		s.logger.Error("Failed to create PIX charge",
			zap.String("order_id", o.ID.String()),
			zap.String("provider", string(gateway.Provider())),
			zap.Error(err))
		return nil, gatewayError(err)
	}

	var updated *order.Order
	err = s.withRetry(ctx, func(ctx context.Context) error {
		current, err := s.orderRepo.FindByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if current.Status == order.StatusAwaitingPayment && !current.HasOpenCharge(time.Now()) {
			if err := current.MarkPaymentFailed("PIX charge expired"); err != nil {
				return err
			}
		}
		if err := current.AttachCharge(charge); err != nil {
			return err
		}
		if err := s.orderRepo.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		if cancelErr := gateway.CancelCharge(ctx, charge.ChargeID); cancelErr != nil {
			s.logger.Warn("Failed to cancel unused PIX charge",
				zap.String("charge_id", charge.ChargeID),
				zap.Error(cancelErr))
		}
		return nil, err
	}

	if staleCharge != "" && staleCharge != charge.ChargeID {
		if cancelErr := s.cancelChargeByID(ctx, o.Payment.Provider, staleCharge); cancelErr != nil {
			s.logger.Warn("Failed to cancel expired PIX charge",
				zap.String("charge_id", staleCharge),
				zap.Error(cancelErr))
		}
	}

	s.publish(ctx, updated)

	s.logger.Info("PIX checkout started",
		zap.String("order_id", updated.ID.String()),
		zap.String("provider", string(charge.Provider)),
		zap.String("charge_id", charge.ChargeID),
		zap.Int("attempt", updated.Payment.Attempts))

	resp := ToResponse(updated)
	return &resp, nil
}

// settleStaleCharge asks the provider about an expired charge. An approved
// charge settles the order, which is returned; nil means the charge can be
// replaced.
func (s *Service) settleStaleCharge(ctx context.Context, o *order.Order) (*order.Order, error) {
	if !o.Payment.HasCharge() {
		return nil, nil
	}
	charge, err := s.fetchCharge(ctx, o)
	if errors.Is(err, payment.ErrChargeNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("Could not check expired charge before replacing it",
			zap.String("order_id", o.ID.String()),
			zap.String("charge_id", o.Payment.ChargeID),
			zap.Error(err))
		return nil, errPaymentUnavailable
	}
	if charge.Status != payment.ProviderStatusApproved {
		return nil, nil
	}
	return s.settle(ctx, o.ID, charge)
}

// GetPaymentStatus returns the payment state of an order. While the order
// awaits payment the provider is asked for the current charge status first.
func (s *Service) GetPaymentStatus(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentStatusResponse, error) {
	o, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == order.StatusAwaitingPayment && o.Payment.HasCharge() {
		charge, err := s.fetchCharge(ctx, o)
		switch {
		case err != nil:
			// Polling keeps working on the stored state while the provider is down
			s.logger.Warn("Failed to fetch charge status",
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
		case charge.Status != payment.ProviderStatusPending:
			settled, err := s.settle(ctx, o.ID, charge)
			if err != nil {
				s.logger.Warn("Failed to apply charge status",
					zap.String("order_id", o.ID.String()),
					zap.Error(err))
			} else {
				o = settled
			}
		}
	}

	resp := ToPaymentStatusResponse(o)
	return &resp, nil
}

// HandleWebhook processes a provider notification. The notification only
// identifies the charge; its status is always re-fetched from the provider.
// Notifications are processed at most once per notification id.
func (s *Service) HandleWebhook(ctx context.Context, provider string, req payment.WebhookRequest) error {
	gateway, err := s.gateways.Get(payment.Provider(provider))
	if err != nil {
		s.metrics.WebhookReceived(provider, WebhookRejected)
		return shared.NewDomainError("UNKNOWN_PROVIDER", "Payment provider is not configured: "+provider)
	}

	notification, err := gateway.ParseWebhook(ctx, req)
	if err != nil {
		s.metrics.WebhookReceived(provider, WebhookRejected)
		s.logger.Warn("Rejected payment webhook",
			zap.String("provider", provider),
			zap.Error(err))
		if errors.Is(err, payment.ErrWebhookSignature) {
			return shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")
		}
		return shared.NewDomainError("INVALID_WEBHOOK", "Invalid webhook notification")
	}
	if notification == nil || notification.ChargeID == "" {
		// Notifications about other resources are acknowledged and ignored
		s.metrics.WebhookReceived(provider, WebhookProcessed)
		return nil
	}

	dedupeKey := webhookKey(provider, notification)
	if s.idempotency != nil {
		first, err := s.idempotency.MarkProcessed(ctx, dedupeKey, s.config.WebhookDedupeTTL)
		if err != nil {
			s.logger.Warn("Webhook deduplication unavailable", zap.Error(err))
		} else if !first {
			s.metrics.WebhookReceived(provider, WebhookDuplicate)
			s.logger.Debug("Duplicate payment webhook ignored", zap.String("key", dedupeKey))
			return nil
		}
	}

	err = s.processNotification(ctx, gateway, notification)
	if err != nil {
		if s.idempotency != nil {
			// Let the provider's retry run again
			if unmarkErr := s.idempotency.Unmark(ctx, dedupeKey); unmarkErr != nil {
				s.logger.Warn("Failed to unmark webhook", zap.Error(unmarkErr))
			}
		}
		s.metrics.WebhookReceived(provider, WebhookFailed)
		return err
	}
	return nil
}

func (s *Service) processNotification(ctx context.Context, gateway payment.PixGateway, n *payment.WebhookNotification) error {
	provider := string(gateway.Provider())

	o, err := s.orderRepo.FindByChargeID(ctx, n.ChargeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.metrics.WebhookReceived(provider, WebhookUnknownCharge)
			s.logger.Warn("Payment webhook for unknown charge",
				zap.String("provider", provider),
				zap.String("charge_id", n.ChargeID))
			return nil
		}
		return err
	}

	charge, err := gateway.GetCharge(ctx, n.ChargeID)
	if err != nil {
		s.logger.Error("Failed to fetch charge for webhook",
			zap.String("order_id", o.ID.String()),
			zap.String("charge_id", n.ChargeID),
			zap.Error(err))
		return gatewayError(err)
	}

	if _, err := s.settle(ctx, o.ID, charge); err != nil {
		return err
	}

	s.metrics.WebhookReceived(provider, WebhookProcessed)
	return nil
}

// SimulatePayment settles a sandbox charge as approved or rejected
func (s *Service) SimulatePayment(ctx context.Context, chargeID string, approve bool, reason string) (*Response, error) {
	if s.sandbox == nil {
		return nil, shared.NewDomainError("SANDBOX_DISABLED", "Sandbox payments are not enabled")
	}

	var (
		charge *payment.Charge
		err    error
	)
	if approve {
		charge, err = s.sandbox.Approve(chargeID)
	} else {
		charge, err = s.sandbox.Reject(chargeID, reason)
	}
	if err != nil {
		if errors.Is(err, payment.ErrChargeNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Charge not found")
		}
		return nil, err
	}

	o, err := s.orderRepo.FindByChargeID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	settled, err := s.settle(ctx, o.ID, charge)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sandbox payment simulated",
		zap.String("charge_id", chargeID),
		zap.Bool("approved", approve),
		zap.String("order_status", string(settled.Status)))

	resp := ToResponse(settled)
	return &resp, nil
}

// settle applies a provider charge status to the order. An approved charge
// sells the reserved keys and delivers the order in the same transaction.
func (s *Service) settle(ctx context.Context, orderID uuid.UUID, charge *payment.Charge) (*order.Order, error) {
	var (
		result  *order.Order
		changed bool
	)
	err := s.withRetry(ctx, func(ctx context.Context) error {
		changed = false
		o, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = o

		if o.Payment.ChargeID != charge.ChargeID {
			if charge.Status == payment.ProviderStatusApproved {
				s.logger.Error("Payment approved for a superseded charge, refund required",
					zap.String("order_id", o.ID.String()),
					zap.String("charge_id", charge.ChargeID))
			}
			return nil
		}

		changed, err = o.ApplyProviderStatus(charge.Status, charge.StatusDetail)
		if err != nil {
			if errors.Is(err, order.ErrLatePayment) {
				s.logger.Error("Payment approved after order was closed, refund required",
					zap.String("order_id", o.ID.String()),
					zap.String("status", string(o.Status)),
					zap.String("charge_id", charge.ChargeID))
				changed = false
				return nil
			}
			return err
		}
		if o.Status == order.StatusPaid {
			if err := s.deliver(ctx, o); err != nil {
				return err
			}
			changed = true
		}
		if o.Status.IsTerminal() && !changed {
			// Already settled earlier; nothing to persist
			return nil
		}
		return s.orderRepo.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.PaymentStatusApplied(string(charge.Provider), string(charge.Status))
		if result.Status == order.StatusDelivered {
			s.metrics.OrderDelivered(result.KeyCount(), shared.ToCents(result.Total))
		}
		s.logger.Info("Payment status applied",
			zap.String("order_id", result.ID.String()),
			zap.String("charge_id", charge.ChargeID),
			zap.String("provider_status", string(charge.Status)),
			zap.String("order_status", string(result.Status)))
	}
	s.publish(ctx, result)
	return result, nil
}

// deliver sells the order's reserved keys and marks it delivered
func (s *Service) deliver(ctx context.Context, o *order.Order) error {
	sold, err := s.keyRepo.MarkSoldByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	if sold != int64(o.KeyCount()) {
		return fmt.Errorf("%w: order %s has %d of %d keys reserved",
			shared.ErrInvalidState, o.Number, sold, o.KeyCount())
	}
	return o.MarkDelivered()
}

func (s *Service) fetchCharge(ctx context.Context, o *order.Order) (*payment.Charge, error) {
	gateway, err := s.gateways.Get(o.Payment.Provider)
	if err != nil {
		return nil, err
	}
	return gateway.GetCharge(ctx, o.Payment.ChargeID)
}

// cancelCharge cancels the pending provider charge of a closed order
func (s *Service) cancelCharge(ctx context.Context, o *order.Order) {
	if !o.Payment.HasCharge() || o.Payment.ProviderStatus != payment.ProviderStatusPending {
		return
	}
	if err := s.cancelChargeByID(ctx, o.Payment.Provider, o.Payment.ChargeID); err != nil {
		s.logger.Warn("Failed to cancel PIX charge",
			zap.String("order_id", o.ID.String()),
			zap.String("charge_id", o.Payment.ChargeID),
			zap.Error(err))
	}
}

func (s *Service) cancelChargeByID(ctx context.Context, provider payment.Provider, chargeID string) error {
	gateway, err := s.gateways.Get(provider)
	if err != nil {
		return err
	}
	return gateway.CancelCharge(ctx, chargeID)
}

func (s *Service) lock(ctx context.Context, name string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, name, s.config.CheckoutLockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, shared.NewDomainError("CHECKOUT_IN_PROGRESS", "A checkout for this order is already in progress")
		}
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("lock", name), zap.Error(err))
		}
	}, nil
}

func webhookKey(provider string, n *payment.WebhookNotification) string {
	if n.NotificationID != "" {
		return fmt.Sprintf("webhook:%s:%s", provider, n.NotificationID)
	}
	return fmt.Sprintf("webhook:%s:%s:%s", provider, n.ChargeID, n.Action)
}

var errPaymentUnavailable = shared.NewDomainError("PAYMENT_UNAVAILABLE", "Payment provider is unavailable, please try again")

func gatewayError(err error) error {
	switch {
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return errPaymentUnavailable
	case errors.Is(err, payment.ErrChargeNotFound):
		return shared.NewDomainError("CHARGE_NOT_FOUND", "Charge not found at the payment provider")
	case errors.Is(err, payment.ErrGatewayRequestFailed):
		return shared.NewDomainError("PAYMENT_PROVIDER_ERROR", "Payment provider rejected the request")
	}
	return err
}
