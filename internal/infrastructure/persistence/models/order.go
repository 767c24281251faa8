package models

import (
	"time"

	"github.com/gamekeys/backend/internal/domain/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate.
// The PIX charge is stored inline; an order has at most one open charge.
type OrderModel struct {
	AggregateModel
	Number           string                 `gorm:"type:varchar(30);not null;uniqueIndex"`
	UserID           uuid.UUID              `gorm:"type:uuid;not null;index"`
	Total            decimal.Decimal        `gorm:"type:decimal(12,2);not null"`
	Status           order.Status           `gorm:"type:varchar(30);not null;index"`
	PaymentProvider  payment.Provider       `gorm:"type:varchar(30)"`
	ChargeID         string                 `gorm:"type:varchar(100);index"`
	ProviderStatus   payment.ProviderStatus `gorm:"type:varchar(20)"`
	StatusDetail     string                 `gorm:"type:varchar(100)"`
	QRCode           string                 `gorm:"column:qr_code;type:text"`
	QRCodeBase64     string                 `gorm:"column:qr_code_base64;type:text"`
	TicketURL        string                 `gorm:"column:ticket_url;type:varchar(500)"`
	ChargeExpiresAt  *time.Time
	PaymentAttempts  int `gorm:"not null;default:0"`
	PaymentCheckedAt *time.Time
	ExpiresAt        time.Time `gorm:"not null;index"`
	PaidAt           *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	FailureReason    string           `gorm:"type:varchar(255)"`
	Items            []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is a purchased product line
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Title     string          `gorm:"type:varchar(200);not null"`
	Platform  string          `gorm:"type:varchar(20)"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Order aggregate.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		UserID:            m.UserID,
		Items:             make([]order.Item, len(m.Items)),
		Total:             m.Total,
		Status:            m.Status,
		Payment: order.PaymentInfo{
			Provider:        m.PaymentProvider,
			ChargeID:        m.ChargeID,
			ProviderStatus:  m.ProviderStatus,
			StatusDetail:    m.StatusDetail,
			QRCode:          m.QRCode,
			QRCodeBase64:    m.QRCodeBase64,
			TicketURL:       m.TicketURL,
			ChargeExpiresAt: m.ChargeExpiresAt,
			Attempts:        m.PaymentAttempts,
			LastCheckedAt:   m.PaymentCheckedAt,
		},
		ExpiresAt:     m.ExpiresAt,
		PaidAt:        m.PaidAt,
		DeliveredAt:   m.DeliveredAt,
		CancelledAt:   m.CancelledAt,
		FailureReason: m.FailureReason,
	}
	for i, item := range m.Items {
		o.Items[i] = order.Item{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Title:     item.Title,
			Platform:  item.Platform,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order aggregate.
// Items are copied as well; Update ignores them since lines never change.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Number = o.Number
	m.UserID = o.UserID
	m.Total = o.Total
	m.Status = o.Status
	m.PaymentProvider = o.Payment.Provider
	m.ChargeID = o.Payment.ChargeID
	m.ProviderStatus = o.Payment.ProviderStatus
	m.StatusDetail = o.Payment.StatusDetail
	m.QRCode = o.Payment.QRCode
	m.QRCodeBase64 = o.Payment.QRCodeBase64
	m.TicketURL = o.Payment.TicketURL
	m.ChargeExpiresAt = o.Payment.ChargeExpiresAt
	m.PaymentAttempts = o.Payment.Attempts
	m.PaymentCheckedAt = o.Payment.LastCheckedAt
	m.ExpiresAt = o.ExpiresAt
	m.PaidAt = o.PaidAt
	m.DeliveredAt = o.DeliveredAt
	m.CancelledAt = o.CancelledAt
	m.FailureReason = o.FailureReason

	m.Items = make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:        item.ID,
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Title:     item.Title,
			Platform:  item.Platform,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order aggregate.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}
