package order

import (
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated          = "OrderCreated"
	EventTypeOrderPaymentRequested = "OrderPaymentRequested"
	EventTypeOrderPaid             = "OrderPaid"
	EventTypeOrderPaymentFailed    = "OrderPaymentFailed"
	EventTypeOrderDelivered        = "OrderDelivered"
	EventTypeOrderCancelled        = "OrderCancelled"
	EventTypeOrderExpired          = "OrderExpired"
)

// OrderCreatedEvent is published when a customer places an order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID       `json:"order_id"`
	Number   string          `json:"number"`
	UserID   uuid.UUID       `json:"user_id"`
	Total    decimal.Decimal `json:"total"`
	KeyCount int             `json:"key_count"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		Number:          o.Number,
		UserID:          o.UserID,
		Total:           o.Total,
		KeyCount:        o.KeyCount(),
	}
}

// OrderPaymentRequestedEvent is published when a PIX charge is attached
type OrderPaymentRequestedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID        `json:"order_id"`
	Provider payment.Provider `json:"provider"`
	ChargeID string           `json:"charge_id"`
	Amount   decimal.Decimal  `json:"amount"`
	Attempt  int              `json:"attempt"`
}

// NewOrderPaymentRequestedEvent creates a new OrderPaymentRequestedEvent
func NewOrderPaymentRequestedEvent(o *Order) *OrderPaymentRequestedEvent {
	return &OrderPaymentRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaymentRequested, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		Provider:        o.Payment.Provider,
		ChargeID:        o.Payment.ChargeID,
		Amount:          o.Total,
		Attempt:         o.Payment.Attempts,
	}
}

// OrderPaidEvent is published when the provider approves the charge.
// Key delivery subscribes to it.
type OrderPaidEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID        `json:"order_id"`
	Number   string           `json:"number"`
	UserID   uuid.UUID        `json:"user_id"`
	Provider payment.Provider `json:"provider"`
	ChargeID string           `json:"charge_id"`
	Amount   decimal.Decimal  `json:"amount"`
}

// NewOrderPaidEvent creates a new OrderPaidEvent
func NewOrderPaidEvent(o *Order) *OrderPaidEvent {
	return &OrderPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaid, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		Number:          o.Number,
		UserID:          o.UserID,
		Provider:        o.Payment.Provider,
		ChargeID:        o.Payment.ChargeID,
		Amount:          o.Total,
	}
}

// OrderPaymentFailedEvent is published when the provider rejects the charge
type OrderPaymentFailedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID `json:"order_id"`
	ChargeID string    `json:"charge_id"`
	Reason   string    `json:"reason"`
}

// NewOrderPaymentFailedEvent creates a new OrderPaymentFailedEvent
func NewOrderPaymentFailedEvent(o *Order) *OrderPaymentFailedEvent {
	return &OrderPaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaymentFailed, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		ChargeID:        o.Payment.ChargeID,
		Reason:          o.FailureReason,
	}
}

// OrderDeliveredEvent is published once keys are handed to the customer
type OrderDeliveredEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID `json:"order_id"`
	UserID   uuid.UUID `json:"user_id"`
	KeyCount int       `json:"key_count"`
}

// NewOrderDeliveredEvent creates a new OrderDeliveredEvent
func NewOrderDeliveredEvent(o *Order) *OrderDeliveredEvent {
	return &OrderDeliveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDelivered, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		UserID:          o.UserID,
		KeyCount:        o.KeyCount(),
	}
}

// OrderClosedEvent is published when an unpaid order is cancelled or expires.
// Its reserved keys are already back in stock when it is published.
type OrderClosedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID        `json:"order_id"`
	Status   Status           `json:"status"`
	Provider payment.Provider `json:"provider,omitempty"`
	ChargeID string           `json:"charge_id,omitempty"`
	Reason   string           `json:"reason"`
}

// NewOrderClosedEvent creates a new OrderClosedEvent of the given type
func NewOrderClosedEvent(o *Order, eventType string) *OrderClosedEvent {
	return &OrderClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		Status:          o.Status,
		Provider:        o.Payment.Provider,
		ChargeID:        o.Payment.ChargeID,
		Reason:          o.FailureReason,
	}
}
