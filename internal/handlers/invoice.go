package handlers

import (
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	authmw "github.com/andriansyah/digistore/internal/middleware/auth"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/andriansyah/digistore/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type InvoiceHandler struct {
	Invoices *repo.InvoiceRepo
}

// invoiceItemView is the buyer-facing line item. The delivery file link
// only appears while the download window is open.
type invoiceItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  uint   `json:"quantity"`
	Download  string `json:"download,omitempty"`
}

type invoiceView struct {
	*models.Invoice
	Items []invoiceItemView `json:"items"`
}

func viewOf(inv *models.Invoice, now time.Time) invoiceView {
	open := inv.DownloadOpen(now)
	items := make([]invoiceItemView, 0, len(inv.Items))
	for _, it := range inv.Items {
		v := invoiceItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
		if open && it.FileData != "" {
			v.Download = it.FileData
		}
		items = append(items, v)
	}
	return invoiceView{Invoice: inv, Items: items}
}

// ListInvoices returns the caller's invoices; the administrator sees
// everyone's and may filter by email.
func (h *InvoiceHandler) ListInvoices(c echo.Context) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return apperr.Unauthorized("login required")
	}

	email := user.Email
	if user.Role == models.RoleAdmin {
		email = c.QueryParam("email")
	}
	status := c.QueryParam("status")

	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	page := parseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, limit)

	invoices, err := h.Invoices.List(c.Request().Context(), email, status, limit, offset)
	if err != nil {
		return err
	}

	now := time.Now()
	views := make([]invoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, viewOf(&invoices[i], now))
	}
	return respondOK(c, views)
}

func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	inv, err := h.Invoices.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	user := authmw.CurrentUser(c)
	if user == nil || (user.Role != models.RoleAdmin && user.Email != inv.Email) {
		return apperr.Forbidden("not your invoice")
	}

	return respondOK(c, viewOf(inv, time.Now()))
}

// CreateInvoice records an invoice directly, outside the payment flow.
// The normal purchase path goes through POST /api/payment/create; this
// exists for manual entries and always starts Pending unless told
// otherwise.
func (h *InvoiceHandler) CreateInvoice(c echo.Context) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return apperr.Unauthorized("login required")
	}

	var inv models.Invoice
	if err := c.Bind(&inv); err != nil {
		return apperr.Validation("invalid request body")
	}
	if inv.Amount <= 0 {
		return apperr.Validation("amount must be positive")
	}

	inv.ID = uuid.NewString()
	inv.Email = user.Email
	inv.UserID = user.UID
	if inv.UserID == "" {
		inv.UserID = user.Email
	}
	if inv.Status == "" {
		inv.Status = models.StatusPending
	}
	if inv.MerchantRef == "" {
		inv.MerchantRef = "MAN-" + uuid.NewString()
	}
	now := time.Now()
	inv.CreatedAt = now
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = now.Add(10 * time.Minute)
	}

	if err := h.Invoices.Create(c.Request().Context(), &inv); err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "invoice created", viewOf(&inv, now))
}

// UpdateInvoice is the exceptional admin edit path; the reconciliation
// flow owns normal status changes.
func (h *InvoiceHandler) UpdateInvoice(c echo.Context) error {
	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return apperr.Validation("invalid request body")
	}

	id := c.Param("id")
	if err := h.Invoices.Update(c.Request().Context(), id, updates); err != nil {
		return err
	}

	inv, err := h.Invoices.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "invoice updated", viewOf(inv, time.Now()))
}

// DeleteInvoice refuses to remove anything already paid; the repo layer
// enforces it, this handler just surfaces the result.
func (h *InvoiceHandler) DeleteInvoice(c echo.Context) error {
	if err := h.Invoices.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "invoice deleted", nil)
}
