package httpserver

import (
	"errors"
	"net/http"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/handlers"
	authmw "github.com/andriansyah/digistore/internal/middleware/auth"
	"github.com/andriansyah/digistore/internal/ratelimit"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Deps struct {
	DB             *gorm.DB
	Gate           *authmw.Gate
	Limiter        *ratelimit.Limiter
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	InvoiceHandler *handlers.InvoiceHandler
	PaymentHandler *handlers.PaymentHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = errorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")
	if d.Limiter != nil {
		api.Use(d.Limiter.Middleware())
	}

	auth := api.Group("/auth")
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.Logout)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct, d.Gate.RequireAdmin)
	products.PUT("/:id", d.ProductHandler.UpdateProduct, d.Gate.RequireAdmin)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, d.Gate.RequireAdmin)
	products.POST("/:id/increment-sales", d.ProductHandler.IncrementSales, d.Gate.RequireAdmin)

	invoices := api.Group("/invoices", d.Gate.RequireAuth)
	invoices.GET("", d.InvoiceHandler.ListInvoices)
	invoices.POST("", d.InvoiceHandler.CreateInvoice)
	invoices.GET("/:id", d.InvoiceHandler.GetInvoice)
	invoices.PUT("/:id", d.InvoiceHandler.UpdateInvoice, d.Gate.RequireAdmin)
	invoices.DELETE("/:id", d.InvoiceHandler.DeleteInvoice, d.Gate.RequireAdmin)

	payment := api.Group("/payment")
	payment.POST("/create", d.PaymentHandler.CreatePayment, d.Gate.RequireAuth)
	payment.GET("/:id/status", d.PaymentHandler.PaymentStatus)
	payment.POST("/:id/status", d.PaymentHandler.PaymentStatus)
	// Gateway-initiated; the HMAC signature is the only gate.
	payment.POST("/callback", d.PaymentHandler.PaymentCallback)

	users := api.Group("/users")
	users.GET("/me", d.UserHandler.Me, d.Gate.RequireAuth)
	users.GET("", d.UserHandler.ListUsers, d.Gate.RequireAdmin)
	users.PUT("/:email", d.UserHandler.UpdateUser, d.Gate.RequireAdmin)
	users.DELETE("/:email", d.UserHandler.DeleteUser, d.Gate.RequireAdmin)
}

// errorHandler converts every error into the response envelope. Typed
// errors keep their status and message; anything unknown becomes a bare
// 500 so internals stay out of responses.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := apperr.Status(err)
	message := apperr.Message(err)

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	}

	_ = c.JSON(code, handlers.Response{Status: false, Message: message})
}
