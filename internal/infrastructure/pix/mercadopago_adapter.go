package pix

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gamekeys/backend/internal/domain/payment"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	mercadoPagoPaymentsPath = "/v1/payments"
	mercadoPagoDateLayout   = "2006-01-02T15:04:05.000-07:00"
	mercadoPagoTopicPayment = "payment"
)

// MercadoPagoAdapter implements payment.PixGateway for Mercado Pago
type MercadoPagoAdapter struct {
	config     MercadoPagoConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewMercadoPagoAdapter creates a new Mercado Pago adapter
func NewMercadoPagoAdapter(cfg *MercadoPagoConfig, logger *zap.Logger) (*MercadoPagoAdapter, error) {
	if cfg == nil {
		return nil, ErrMercadoPagoMissingToken
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cfg.withDefaults()
	if c.WebhookSecret == "" {
		logger.Warn("Mercado Pago webhook secret not set, notification signatures will not be verified")
	}

	return &MercadoPagoAdapter{
		config: c,
		httpClient: &http.Client{
			Timeout: c.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.Burst),
		logger:  logger,
	}, nil
}

// Provider returns the Mercado Pago provider
func (a *MercadoPagoAdapter) Provider() payment.Provider {
	return payment.ProviderMercadoPago
}

// CreateCharge creates a PIX payment
func (a *MercadoPagoAdapter) CreateCharge(ctx context.Context, req payment.CreateChargeRequest) (*payment.Charge, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := mercadoPagoPaymentRequest{
		TransactionAmount: json.Number(req.Amount.StringFixed(2)),
		Description:       req.Description,
		PaymentMethodID:   "pix",
		ExternalReference: req.OrderNumber,
		NotificationURL:   req.NotificationURL,
		Payer: mercadoPagoPayer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
		},
	}
	if body.NotificationURL == "" {
		body.NotificationURL = a.config.NotificationURL
	}
	if body.Description == "" {
		body.Description = "Pedido " + req.OrderNumber
	}
	if !req.ExpiresAt.IsZero() {
		body.DateOfExpiration = req.ExpiresAt.Format(mercadoPagoDateLayout)
	}
	if req.Payer.TaxID != "" {
		body.Payer.Identification = &mercadoPagoIdentification{Type: "CPF", Number: req.Payer.TaxID}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to marshal request: %w", err)
	}

	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["X-Idempotency-Key"] = req.IdempotencyKey
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, mercadoPagoPaymentsPath, payload, headers)
	if err != nil {
		return nil, err
	}

	var p mercadoPagoPayment
	if err := json.Unmarshal(respBody, &p); err != nil {
		return nil, fmt.Errorf("mercadopago: failed to parse response: %w", err)
	}

	charge := a.toCharge(&p)
	if charge.ExpiresAt.IsZero() {
		charge.ExpiresAt = req.ExpiresAt
	}

	a.logger.Info("PIX charge created",
		zap.String("provider", string(payment.ProviderMercadoPago)),
		zap.String("charge_id", charge.ChargeID),
		zap.String("order_number", req.OrderNumber),
		zap.String("amount", req.Amount.StringFixed(2)))

	return charge, nil
}

// GetCharge fetches a payment by id
func (a *MercadoPagoAdapter) GetCharge(ctx context.Context, chargeID string) (*payment.Charge, error) {
	if chargeID == "" {
		return nil, payment.ErrChargeNotFound
	}

	respBody, err := a.doRequest(ctx, http.MethodGet, mercadoPagoPaymentsPath+"/"+chargeID, nil, nil)
	if err != nil {
		return nil, err
	}

	var p mercadoPagoPayment
	if err := json.Unmarshal(respBody, &p); err != nil {
		return nil, fmt.Errorf("mercadopago: failed to parse response: %w", err)
	}
	return a.toCharge(&p), nil
}

// CancelCharge cancels a pending payment. Payments already approved or
// rejected are left untouched.
func (a *MercadoPagoAdapter) CancelCharge(ctx context.Context, chargeID string) error {
	charge, err := a.GetCharge(ctx, chargeID)
	if err != nil {
		return err
	}
	if charge.Status.IsFinal() {
		return nil
	}

	payload, err := json.Marshal(mercadoPagoStatusUpdate{Status: "cancelled"})
	if err != nil {
		return fmt.Errorf("mercadopago: failed to marshal request: %w", err)
	}
	if _, err := a.doRequest(ctx, http.MethodPut, mercadoPagoPaymentsPath+"/"+chargeID, payload, nil); err != nil {
		return err
	}

	a.logger.Info("PIX charge cancelled",
		zap.String("provider", string(payment.ProviderMercadoPago)),
		zap.String("charge_id", chargeID))
	return nil
}

// ParseWebhook verifies the x-signature header and extracts the payment id.
// Notifications for other topics are returned without a ChargeID.
func (a *MercadoPagoAdapter) ParseWebhook(ctx context.Context, req payment.WebhookRequest) (*payment.WebhookNotification, error) {
	var n mercadoPagoNotification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}

	dataID := req.Query["data.id"]
	if dataID == "" {
		dataID = n.Data.ID
	}

	if a.config.WebhookSecret != "" {
		if err := VerifyMercadoPagoSignature(a.config.WebhookSecret, req.Header("x-signature"),
			req.Header("x-request-id"), dataID); err != nil {
			return nil, err
		}
	}

	topic := n.Type
	if topic == "" {
		topic = req.Query["type"]
	}

	notification := &payment.WebhookNotification{
		NotificationID: n.ID.String(),
		Action:         n.Action,
	}
	if topic != mercadoPagoTopicPayment {
		return notification, nil
	}
	if dataID == "" {
		return nil, fmt.Errorf("%w: missing data.id", payment.ErrInvalidWebhook)
	}
	notification.ChargeID = dataID
	if notification.NotificationID == "" {
		notification.NotificationID = req.Header("x-request-id")
	}
	return notification, nil
}

// VerifyMercadoPagoSignature checks an x-signature header ("ts=...,v1=...")
// against the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;"
func VerifyMercadoPagoSignature(secret, signature, requestID, dataID string) error {
	if signature == "" {
		return fmt.Errorf("%w: missing x-signature header", payment.ErrWebhookSignature)
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("%w: malformed x-signature header", payment.ErrWebhookSignature)
	}

	expected := MercadoPagoSignature(secret, ts, requestID, dataID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return payment.ErrWebhookSignature
	}
	return nil
}

// MercadoPagoSignature computes the hex HMAC-SHA256 v1 value for a notification
func MercadoPagoSignature(secret, ts, requestID, dataID string) string {
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		manifest.WriteString("request-id:" + requestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *MercadoPagoAdapter) toCharge(p *mercadoPagoPayment) *payment.Charge {
	charge := &payment.Charge{
		Provider:     payment.ProviderMercadoPago,
		ChargeID:     strconv.FormatInt(p.ID, 10),
		Status:       mapMercadoPagoStatus(p.Status),
		StatusDetail: p.StatusDetail,
		Amount:       p.TransactionAmount,
		QRCode:       p.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: p.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:    p.PointOfInteraction.TransactionData.TicketURL,
		ExternalRef:  p.ExternalReference,
	}
	if t, ok := parseMercadoPagoTime(p.DateOfExpiration); ok {
		charge.ExpiresAt = t
	}
	if t, ok := parseMercadoPagoTime(p.DateApproved); ok {
		charge.ApprovedAt = &t
	}
	return charge
}

// mapMercadoPagoStatus collapses Mercado Pago's payment statuses into the
// three provider states
func mapMercadoPagoStatus(status string) payment.ProviderStatus {
	switch status {
	case "approved":
		return payment.ProviderStatusApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return payment.ProviderStatusRejected
	default:
		// pending, in_process, authorized, in_mediation
		return payment.ProviderStatusPending
	}
}

func parseMercadoPagoTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// doRequest performs a throttled, authenticated request against the API
func (a *MercadoPagoAdapter) doRequest(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", payment.ErrChargeNotFound, method, path)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", payment.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var errResp mercadoPagoErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("%w: %s - %s", payment.ErrGatewayRequestFailed, errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", payment.ErrGatewayRequestFailed, resp.StatusCode)
	}

	return respBody, nil
}

var _ payment.PixGateway = (*MercadoPagoAdapter)(nil)
