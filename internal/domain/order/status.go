package order

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusPaymentFailed   Status = "payment_failed"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusExpired         Status = "expired"
)

// AllStatuses returns every order status
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusAwaitingPayment,
		StatusPaid,
		StatusPaymentFailed,
		StatusDelivered,
		StatusCancelled,
		StatusExpired,
	}
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAwaitingPayment, StatusPaid, StatusPaymentFailed,
		StatusDelivered, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for states that never change again
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusExpired
}

// HoldsReservation returns true while the order keeps its keys reserved
// but has not been paid yet
func (s Status) HoldsReservation() bool {
	return s == StatusPending || s == StatusAwaitingPayment || s == StatusPaymentFailed
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusAwaitingPayment || target == StatusCancelled || target == StatusExpired
	case StatusAwaitingPayment:
		return target == StatusPaid || target == StatusPaymentFailed ||
			target == StatusCancelled || target == StatusExpired
	case StatusPaymentFailed:
		return target == StatusAwaitingPayment || target == StatusCancelled || target == StatusExpired
	case StatusPaid:
		return target == StatusDelivered
	case StatusDelivered, StatusCancelled, StatusExpired:
		return false // Terminal states
	}
	return false
}
