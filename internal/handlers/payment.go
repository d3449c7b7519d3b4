package handlers

import (
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	authmw "github.com/andriansyah/digistore/internal/middleware/auth"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/andriansyah/digistore/internal/service"
	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	Service *service.InvoiceService
}

// CreatePayment starts the purchase flow: gateway transaction first,
// Pending invoice second.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return apperr.Unauthorized("login required")
	}

	// Older clients send product_id; the storefront frontend sends
	// productId. Both are accepted.
	var req struct {
		ProductID      string                `json:"productId"`
		ProductIDSnake string                `json:"product_id"`
		AdditionalInfo []models.ProductField `json:"additional_information"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	productID := req.ProductID
	if productID == "" {
		productID = req.ProductIDSnake
	}

	invoice, err := h.Service.Create(c.Request().Context(), user, productID, req.AdditionalInfo)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "invoice created", echo.Map{
		"invoice_id":  invoice.ID,
		"amount":      invoice.Amount,
		"qr_string":   invoice.QRString,
		"qr_url":      invoice.QRURL,
		"payment_url": invoice.PaymentURL,
		"pay_url":     invoice.CheckoutURL,
		"expires_at":  invoice.ExpiresAt,
		"redirect":    "/invoice/" + invoice.ID,
	})
}

// PaymentStatus reconciles one invoice with the gateway and reports the
// result. Serves both the 5-second poll and manual re-checks.
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	invoice, err := h.Service.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return respondOK(c, echo.Map{
		"status":     invoice.Status,
		"paid_at":    invoice.PaidAt,
		"expires_at": invoice.ExpiresAt,
		"remaining":  remainingSeconds(invoice),
		"message":    statusMessage(invoice.Status),
	})
}

// PaymentCallback handles the gateway-initiated notification. No auth:
// the HMAC signature is the gate.
func (h *PaymentHandler) PaymentCallback(c echo.Context) error {
	var body struct {
		MerchantRef string `json:"merchant_ref"`
		Reference   string `json:"reference"`
		Status      string `json:"status"`
		Signature   string `json:"signature"`
		TrxID       string `json:"trx_id"`
		Amount      int64  `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid callback body")
	}

	merchantRef := body.MerchantRef
	if merchantRef == "" {
		merchantRef = body.Reference
	}

	payload := map[string]string{
		"merchant_ref": merchantRef,
		"status":       body.Status,
		"signature":    body.Signature,
		"trx_id":       body.TrxID,
		"amount":       formatInt(body.Amount),
	}

	invoice, err := h.Service.HandleCallback(c.Request().Context(), payload)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "callback processed", echo.Map{
		"invoice_id": invoice.ID,
		"status":     invoice.Status,
	})
}

func remainingSeconds(inv *models.Invoice) int64 {
	if inv.Status != models.StatusPending {
		return 0
	}
	remaining := time.Until(inv.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

func statusMessage(status string) string {
	switch status {
	case models.StatusPaid, models.StatusPaidLunas:
		return "payment successful"
	case models.StatusPending:
		return "awaiting payment"
	case models.StatusExpired:
		return "payment window expired"
	case models.StatusFailed:
		return "payment failed"
	default:
		return "unknown status"
	}
}
