package order

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLatePayment is returned when the provider approves a charge for an order
// that was already cancelled or expired
var ErrLatePayment = shared.NewDomainError("LATE_PAYMENT", "Payment approved after the order was closed")

// Item is a purchased product line with a price snapshot
type Item struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Title     string
	Platform  string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// NewItemInput describes a line when creating an order
type NewItemInput struct {
	ProductID uuid.UUID
	Title     string
	Platform  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// PaymentInfo is the PIX charge currently attached to the order
type PaymentInfo struct {
	Provider        payment.Provider
	ChargeID        string
	ProviderStatus  payment.ProviderStatus
	StatusDetail    string
	QRCode          string
	QRCodeBase64    string
	TicketURL       string
	ChargeExpiresAt *time.Time
	Attempts        int
	LastCheckedAt   *time.Time
}

// HasCharge reports whether a provider charge is attached
func (p PaymentInfo) HasCharge() bool {
	return p.ChargeID != ""
}

// Order is a customer's purchase of one or more game keys
type Order struct {
	shared.BaseAggregateRoot
	Number        string
	UserID        uuid.UUID
	Items         []Item
	Total         decimal.Decimal
	Status        Status
	Payment       PaymentInfo
	ExpiresAt     time.Time
	PaidAt        *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	FailureReason string
}

// NewOrder creates a pending order. ttl bounds how long the order may wait
// for payment before it expires and its keys are released.
func NewOrder(userID uuid.UUID, items []NewItemInput, ttl time.Duration) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Order must belong to a user")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_ITEMS", "Order must contain at least one item")
	}
	if ttl <= 0 {
		return nil, shared.NewDomainError("INVALID_TTL", "Order reservation time must be positive")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            GenerateNumber(time.Now()),
		UserID:            userID,
		Status:            StatusPending,
	}
	o.ExpiresAt = o.CreatedAt.Add(ttl)

	seen := make(map[uuid.UUID]bool, len(items))
	for _, in := range items {
		if in.ProductID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID is required")
		}
		if seen[in.ProductID] {
			return nil, shared.NewDomainError("DUPLICATE_PRODUCT", "Each product may appear only once per order")
		}
		seen[in.ProductID] = true
		if in.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		if !in.UnitPrice.IsPositive() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Unit price must be positive")
		}

		o.Items = append(o.Items, Item{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ProductID: in.ProductID,
			Title:     in.Title,
			Platform:  in.Platform,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			Subtotal:  in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}
	o.recalculateTotal()

	o.AddDomainEvent(NewOrderCreatedEvent(o))

	return o, nil
}

// KeyCount returns the number of keys the order buys
func (o *Order) KeyCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// IsOwnedBy reports whether the order belongs to the user
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// IsExpired reports whether an unpaid order has passed its reservation deadline
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status.HoldsReservation() && now.After(o.ExpiresAt)
}

// HasOpenCharge reports whether the order is awaiting payment on a charge
// that the customer can still pay
func (o *Order) HasOpenCharge(now time.Time) bool {
	if o.Status != StatusAwaitingPayment || !o.Payment.HasCharge() {
		return false
	}
	return o.Payment.ChargeExpiresAt == nil || now.Before(*o.Payment.ChargeExpiresAt)
}

// AttachCharge records a newly created PIX charge and moves the order to
// awaiting_payment
func (o *Order) AttachCharge(charge *payment.Charge) error {
	if !o.Status.CanTransitionTo(StatusAwaitingPayment) {
		return invalidTransition(o.Status, "start payment for")
	}
	if charge == nil || charge.ChargeID == "" {
		return shared.NewDomainError("INVALID_CHARGE", "Charge ID is required")
	}
	if !charge.Amount.Equal(o.Total) {
		return shared.NewDomainError("AMOUNT_MISMATCH",
			fmt.Sprintf("Charge amount %s does not match order total %s", charge.Amount, o.Total))
	}

	now := time.Now()
	expiresAt := charge.ExpiresAt
	o.Payment = PaymentInfo{
		Provider:        charge.Provider,
		ChargeID:        charge.ChargeID,
		ProviderStatus:  payment.ProviderStatusPending,
		StatusDetail:    charge.StatusDetail,
		QRCode:          charge.QRCode,
		QRCodeBase64:    charge.QRCodeBase64,
		TicketURL:       charge.TicketURL,
		ChargeExpiresAt: &expiresAt,
		Attempts:        o.Payment.Attempts + 1,
		LastCheckedAt:   &now,
	}
	if expiresAt.IsZero() {
		o.Payment.ChargeExpiresAt = nil
	}
	o.Status = StatusAwaitingPayment
	o.FailureReason = ""
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderPaymentRequestedEvent(o))

	return nil
}

// ApplyProviderStatus maps the provider's three-valued status onto the order:
// approved -> paid, rejected -> payment_failed, pending -> unchanged.
// Returns true when the order status changed.
func (o *Order) ApplyProviderStatus(status payment.ProviderStatus, detail string) (bool, error) {
	if !status.IsValid() {
		return false, shared.NewDomainError("INVALID_PROVIDER_STATUS", "Unknown provider status: "+string(status))
	}

	now := time.Now()
	o.Payment.LastCheckedAt = &now

	switch o.Status {
	case StatusAwaitingPayment:
	case StatusPaid, StatusDelivered:
		// Duplicate approval (webhook + poll); nothing to do
		return false, nil
	case StatusCancelled, StatusExpired:
		if status == payment.ProviderStatusApproved {
			return false, ErrLatePayment
		}
		return false, nil
	default:
		return false, nil
	}

	o.Payment.ProviderStatus = status
	o.Payment.StatusDetail = detail

	switch status {
	case payment.ProviderStatusApproved:
		return true, o.MarkPaid()
	case payment.ProviderStatusRejected:
		return true, o.MarkPaymentFailed(detail)
	}
	return false, nil
}

// MarkPaid records that the PIX charge was approved
func (o *Order) MarkPaid() error {
	if !o.Status.CanTransitionTo(StatusPaid) {
		return invalidTransition(o.Status, "mark as paid")
	}

	now := time.Now()
	o.Status = StatusPaid
	o.Payment.ProviderStatus = payment.ProviderStatusApproved
	o.PaidAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderPaidEvent(o))

	return nil
}

// MarkPaymentFailed records that the PIX charge was rejected
func (o *Order) MarkPaymentFailed(reason string) error {
	if !o.Status.CanTransitionTo(StatusPaymentFailed) {
		return invalidTransition(o.Status, "fail payment of")
	}
	if reason == "" {
		reason = "rejected by payment provider"
	}

	o.Status = StatusPaymentFailed
	o.Payment.ProviderStatus = payment.ProviderStatusRejected
	o.FailureReason = reason
	o.UpdatedAt = time.Now()

	o.AddDomainEvent(NewOrderPaymentFailedEvent(o))

	return nil
}

// MarkDelivered records that the reserved keys were handed to the customer
func (o *Order) MarkDelivered() error {
	if !o.Status.CanTransitionTo(StatusDelivered) {
		return invalidTransition(o.Status, "deliver")
	}

	now := time.Now()
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderDeliveredEvent(o))

	return nil
}

// Cancel closes an unpaid order at the customer's or an admin's request
func (o *Order) Cancel(reason string) error {
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return invalidTransition(o.Status, "cancel")
	}

	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.FailureReason = reason
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderClosedEvent(o, EventTypeOrderCancelled))

	return nil
}

// Expire closes an unpaid order whose reservation deadline passed
func (o *Order) Expire() error {
	if !o.Status.CanTransitionTo(StatusExpired) {
		return invalidTransition(o.Status, "expire")
	}

	now := time.Now()
	o.Status = StatusExpired
	o.CancelledAt = &now
	o.FailureReason = "payment not received in time"
	o.UpdatedAt = now

	o.AddDomainEvent(NewOrderClosedEvent(o, EventTypeOrderExpired))

	return nil
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.Total = total
}

func invalidTransition(from Status, action string) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot %s order in %s status", action, from))
}

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateNumber returns a human friendly order number, GK-YYYYMMDD-XXXXXX
func GenerateNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, uuid.New().String())
	}
	for i := range buf {
		buf[i] = numberAlphabet[int(buf[i])%len(numberAlphabet)]
	}
	return fmt.Sprintf("GK-%s-%s", now.Format("20060102"), buf)
}
