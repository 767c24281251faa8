package pix

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// mercadoPagoPaymentRequest is the body of POST /v1/payments for a PIX charge
type mercadoPagoPaymentRequest struct {
	TransactionAmount json.Number      `json:"transaction_amount"`
	Description       string           `json:"description"`
	PaymentMethodID   string           `json:"payment_method_id"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	DateOfExpiration  string           `json:"date_of_expiration,omitempty"`
	Payer             mercadoPagoPayer `json:"payer"`
}

type mercadoPagoPayer struct {
	Email          string                     `json:"email"`
	FirstName      string                     `json:"first_name,omitempty"`
	LastName       string                     `json:"last_name,omitempty"`
	Identification *mercadoPagoIdentification `json:"identification,omitempty"`
}

type mercadoPagoIdentification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// mercadoPagoPayment is the payment resource returned by the API
type mercadoPagoPayment struct {
	ID                 int64           `json:"id"`
	Status             string          `json:"status"`
	StatusDetail       string          `json:"status_detail"`
	TransactionAmount  decimal.Decimal `json:"transaction_amount"`
	ExternalReference  string          `json:"external_reference"`
	DateOfExpiration   string          `json:"date_of_expiration"`
	DateApproved       string          `json:"date_approved"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mercadoPagoStatusUpdate struct {
	Status string `json:"status"`
}

// mercadoPagoErrorResponse represents an error response from the API
type mercadoPagoErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Cause   []struct {
		Code        json.Number `json:"code"`
		Description string      `json:"description"`
	} `json:"cause"`
}

// mercadoPagoNotification is the webhook body for the "payment" topic
type mercadoPagoNotification struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}
