package order

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/catalog"
	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor identifies who is calling an order operation
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// DirectItem is one product of a "buy now" order
type DirectItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=10"`
}

// CreateDirectRequest creates an order without going through the cart
type CreateDirectRequest struct {
	Items []DirectItem `json:"items" binding:"required,min=1,dive"`
}

// CancelRequest carries an optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// ListFilter contains the order listing filters
type ListFilter struct {
	Status   string     `form:"status" binding:"omitempty,oneof=pending awaiting_payment paid payment_failed delivered cancelled expired"`
	UserID   *uuid.UUID `form:"-"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Search   string     `form:"search"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ItemResponse is an order line
type ItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Platform  string          `json:"platform"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// PaymentResponse is the PIX charge attached to an order
type PaymentResponse struct {
	Provider       string     `json:"provider"`
	ChargeID       string     `json:"charge_id"`
	ProviderStatus string     `json:"provider_status"`
	StatusDetail   string     `json:"status_detail,omitempty"`
	QRCode         string     `json:"qr_code,omitempty"`
	QRCodeBase64   string     `json:"qr_code_base64,omitempty"`
	TicketURL      string     `json:"ticket_url,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Attempts       int        `json:"attempts"`
}

// Response represents an order in API responses
type Response struct {
	ID             uuid.UUID        `json:"id"`
	Number         string           `json:"number"`
	UserID         uuid.UUID        `json:"user_id"`
	Status         string           `json:"status"`
	Items          []ItemResponse   `json:"items"`
	Total          decimal.Decimal  `json:"total"`
	TotalFormatted string           `json:"total_formatted"`
	KeyCount       int              `json:"key_count"`
	Payment        *PaymentResponse `json:"payment,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	PaidAt         *time.Time       `json:"paid_at,omitempty"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ToResponse converts a domain Order to Response
func ToResponse(o *order.Order) Response {
	items := make([]ItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = ItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			Platform:  item.Platform,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	resp := Response{
		ID:             o.ID,
		Number:         o.Number,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Items:          items,
		Total:          o.Total,
		TotalFormatted: shared.FormatBRL(o.Total),
		KeyCount:       o.KeyCount(),
		ExpiresAt:      o.ExpiresAt,
		PaidAt:         o.PaidAt,
		DeliveredAt:    o.DeliveredAt,
		CancelledAt:    o.CancelledAt,
		FailureReason:  o.FailureReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.Payment.HasCharge() {
		resp.Payment = toPaymentResponse(o)
	}
	return resp
}

func toPaymentResponse(o *order.Order) *PaymentResponse {
	p := &PaymentResponse{
		Provider:       string(o.Payment.Provider),
		ChargeID:       o.Payment.ChargeID,
		ProviderStatus: string(o.Payment.ProviderStatus),
		StatusDetail:   o.Payment.StatusDetail,
		TicketURL:      o.Payment.TicketURL,
		ExpiresAt:      o.Payment.ChargeExpiresAt,
		Attempts:       o.Payment.Attempts,
	}
	// QR data is only useful while the customer can still pay
	if o.Status == order.StatusAwaitingPayment {
		p.QRCode = o.Payment.QRCode
		p.QRCodeBase64 = o.Payment.QRCodeBase64
	}
	return p
}

// PaymentStatusResponse is returned by the payment polling endpoint
type PaymentStatusResponse struct {
	OrderID        uuid.UUID        `json:"order_id"`
	Status         string           `json:"status"`
	ProviderStatus string           `json:"provider_status,omitempty"`
	Paid           bool             `json:"paid"`
	Delivered      bool             `json:"delivered"`
	ExpiresAt      time.Time        `json:"expires_at"`
	Payment        *PaymentResponse `json:"payment,omitempty"`
}

// ToPaymentStatusResponse converts an order to its payment status view
func ToPaymentStatusResponse(o *order.Order) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		OrderID:        o.ID,
		Status:         string(o.Status),
		ProviderStatus: string(o.Payment.ProviderStatus),
		Paid:           o.PaidAt != nil,
		Delivered:      o.Status == order.StatusDelivered,
		ExpiresAt:      o.ExpiresAt,
	}
	if o.Payment.HasCharge() {
		resp.Payment = toPaymentResponse(o)
	}
	return resp
}

// DeliveredKey is an activation code handed to the customer
type DeliveredKey struct {
	ProductID uuid.UUID `json:"product_id"`
	Title     string    `json:"title"`
	Platform  string    `json:"platform"`
	Code      string    `json:"code"`
	SoldAt    time.Time `json:"sold_at"`
}

// KeysResponse lists the keys of a delivered order
type KeysResponse struct {
	OrderID uuid.UUID      `json:"order_id"`
	Number  string         `json:"number"`
	Keys    []DeliveredKey `json:"keys"`
}

func toKeysResponse(o *order.Order, keys []catalog.GameKey) KeysResponse {
	titles := make(map[uuid.UUID]order.Item, len(o.Items))
	for _, item := range o.Items {
		titles[item.ProductID] = item
	}

	resp := KeysResponse{
		OrderID: o.ID,
		Number:  o.Number,
		Keys:    make([]DeliveredKey, len(keys)),
	}
	for i, key := range keys {
		item := titles[key.ProductID]
		delivered := DeliveredKey{
			ProductID: key.ProductID,
			Title:     item.Title,
			Platform:  item.Platform,
			Code:      key.Code,
		}
		if key.SoldAt != nil {
			delivered.SoldAt = *key.SoldAt
		}
		resp.Keys[i] = delivered
	}
	return resp
}
