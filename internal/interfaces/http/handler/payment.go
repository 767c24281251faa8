package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gamekeys/backend/internal/application/order"
	"github.com/gamekeys/backend/internal/domain/payment"
	"github.com/gamekeys/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// PaymentService receives provider notifications and sandbox simulations
type PaymentService interface {
	HandleWebhook(ctx context.Context, provider string, req payment.WebhookRequest) error
	SimulatePayment(ctx context.Context, chargeID string, approve bool, reason string) (*order.Response, error)
}

// PaymentHandler handles PIX provider webhooks and sandbox payment simulation
type PaymentHandler struct {
	BaseHandler
	paymentService PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// SimulateRequest carries the rejection reason of a simulated payment
type SimulateRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// WebhookAck is returned to the provider once a notification is accepted
type WebhookAck struct {
	Received bool `json:"received"`
}

// Webhook godoc
// @Summary      Receive a PIX provider notification
// @Description  The signature is checked against the raw body, then the charge is fetched from the provider.
// @Description  Duplicate notifications are acknowledged without being applied again.
// @Tags         payments
// @Param        provider  path  string  true  "Provider name"
// @Router       /payments/webhook/{provider} [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Unable to read request body")
		return
	}

	req := payment.WebhookRequest{
		Body:    body,
		Headers: make(map[string]string, len(c.Request.Header)),
		Query:   make(map[string]string),
	}
	for name := range c.Request.Header {
		req.Headers[name] = c.Request.Header.Get(name)
	}
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			req.Query[name] = values[0]
		}
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), c.Param("provider"), req); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, WebhookAck{Received: true})
}

// ApproveSandbox marks a sandbox charge as paid and settles its order
func (h *PaymentHandler) ApproveSandbox(c *gin.Context) {
	h.simulate(c, true)
}

// RejectSandbox marks a sandbox charge as rejected
func (h *PaymentHandler) RejectSandbox(c *gin.Context) {
	h.simulate(c, false)
}

func (h *PaymentHandler) simulate(c *gin.Context, approve bool) {
	var req SimulateRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	result, err := h.paymentService.SimulatePayment(c.Request.Context(), c.Param("charge_id"), approve, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
