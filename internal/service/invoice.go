package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/events"
	"github.com/andriansyah/digistore/internal/logging"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/andriansyah/digistore/internal/repo"
	"github.com/andriansyah/digistore/internal/tripay"
	"github.com/google/uuid"
)

const (
	// PaymentWindow is how long a Pending invoice stays payable.
	PaymentWindow = 10 * time.Minute
	// feePercent is the platform fee added on top of the product price.
	feePercent = 10
	// merchantRefAttempts bounds the regenerate-on-conflict loop.
	merchantRefAttempts = 3
)

// Gateway is the slice of the payment gateway client the state machine
// needs. The production implementation is *tripay.Client.
type Gateway interface {
	CreateTransaction(ctx context.Context, req tripay.CreateRequest) (*tripay.Transaction, error)
	GetTransactionStatus(ctx context.Context, reference string) (string, error)
	CalculateExpiry(minutes int) int64
}

// Publisher is the slice of the event producer the state machine needs.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// InvoiceService drives the invoice lifecycle:
// Pending -> {Paid, Expired, Failed}, all terminal.
type InvoiceService struct {
	Invoices   *repo.InvoiceRepo
	Products   *repo.ProductRepo
	Gateway    Gateway
	Producer   Publisher
	PrivateKey []byte
	// CallbackURL is handed to the gateway so it knows where to post
	// payment notifications.
	CallbackURL string
}

// PlatformFee is the rounded 10% fee charged on top of the price.
func PlatformFee(price int64) int64 {
	return int64(math.Round(float64(price) * feePercent / 100))
}

// Create initiates a purchase: validates the product, registers the
// transaction with the gateway, and persists a Pending invoice. A
// gateway failure aborts before any local write.
func (s *InvoiceService) Create(ctx context.Context, user *models.User, productID string, additionalInfo []models.ProductField) (*models.Invoice, error) {
	if productID == "" {
		return nil, apperr.Validation("product id is required")
	}

	product, err := s.Products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.StockAvailable {
		return nil, apperr.Validation("product is out of stock")
	}

	price := product.Price
	fee := PlatformFee(price)
	total := price + fee

	merchantRef, err := s.newMerchantRef(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	expiry := s.Gateway.CalculateExpiry(int(PaymentWindow / time.Minute))

	signature := tripay.GenerateSignature(map[string]string{
		"merchant_ref": merchantRef,
		"amount":       strconv.FormatInt(total, 10),
		"expired_time": strconv.FormatInt(expiry, 10),
	}, s.PrivateKey)

	trx, err := s.Gateway.CreateTransaction(ctx, tripay.CreateRequest{
		MerchantRef:   merchantRef,
		Amount:        total,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		OrderItems: []tripay.OrderItem{{
			SKU:      product.ID,
			Name:     product.Name,
			Price:    total,
			Quantity: 1,
		}},
		Signature:   signature,
		ExpiredTime: expiry,
		CallbackURL: s.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	if len(additionalInfo) == 0 {
		additionalInfo = product.AdditionalInfo
	}

	now := time.Now()
	invoice := &models.Invoice{
		ID:     uuid.NewString(),
		Email:  user.Email,
		UserID: ownerID(user),
		Amount: total,
		Items: []models.InvoiceItem{{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     price,
			Quantity:  1,
			FileType:  product.FileType,
			FileData:  product.FileData,
		}},
		QRString:       trx.QRString,
		QRURL:          trx.QRURL,
		PaymentURL:     trx.PaymentURL,
		CheckoutURL:    trx.CheckoutURL,
		Status:         models.StatusPending,
		PaymentMethod:  "Tripay",
		AdditionalInfo: additionalInfo,
		MerchantRef:    merchantRef,
		GatewayRef:     trx.Reference,
		GatewayTrxID:   trx.TrxID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(PaymentWindow),
	}

	if err := s.Invoices.Create(ctx, invoice); err != nil {
		// The remote transaction stays orphaned here; there is no
		// gateway-side rollback.
		return nil, apperr.Internal("failed to persist invoice", err)
	}

	s.publish(ctx, invoiceEvent("invoice_created", invoice))
	return invoice, nil
}

// ownerID is the provider uid when the account has one; legacy records
// provisioned before uid tracking fall back to the email key.
func ownerID(user *models.User) string {
	if user.UID != "" {
		return user.UID
	}
	return user.Email
}

// newMerchantRef derives a reference from the current time and the
// caller's identity, retrying under the unique index when two requests
// land on the same millisecond.
func (s *InvoiceService) newMerchantRef(ctx context.Context, email string) (string, error) {
	uid := email
	if len(uid) > 8 {
		uid = uid[:8]
	}
	for attempt := 0; attempt < merchantRefAttempts; attempt++ {
		ref := fmt.Sprintf("INV-%d-%s", time.Now().UnixMilli(), uid)
		if attempt > 0 {
			ref = fmt.Sprintf("%s-%s", ref, uuid.NewString()[:4])
		}
		exists, err := s.Invoices.MerchantRefExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", apperr.Internal("could not allocate a unique merchant reference", nil)
}

// Reconcile fetches the remote status of an invoice and applies it
// locally. Idempotent: a paid invoice is never touched again, and an
// unknown remote status leaves local state unchanged.
func (s *InvoiceService) Reconcile(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	invoice, err := s.Invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.Terminal() {
		return invoice, nil
	}

	reference := invoice.GatewayRef
	if reference == "" {
		reference = invoice.MerchantRef
	}

	remote, err := s.Gateway.GetTransactionStatus(ctx, reference)
	if err != nil {
		// Status unknown, not terminal. Keep local state.
		return nil, err
	}

	return s.apply(ctx, invoice, remote, 0)
}

// HandleCallback processes a gateway-initiated notification. The HMAC
// is checked before anything else; a bad signature changes nothing.
func (s *InvoiceService) HandleCallback(ctx context.Context, payload map[string]string) (*models.Invoice, error) {
	signature := payload["signature"]
	if !tripay.VerifyCallback(payload, signature, s.PrivateKey) {
		return nil, apperr.Unauthorized("invalid callback signature")
	}

	merchantRef := payload["merchant_ref"]
	if merchantRef == "" {
		return nil, apperr.Validation("missing merchant reference")
	}

	invoice, err := s.Invoices.GetByMerchantRef(ctx, merchantRef)
	if err != nil {
		return nil, err
	}
	if invoice.Terminal() {
		return invoice, nil
	}

	paidAmount, _ := strconv.ParseInt(payload["amount"], 10, 64)
	inv, err := s.apply(ctx, invoice, payload["status"], paidAmount)
	if err != nil {
		return nil, err
	}
	if trxID := payload["trx_id"]; trxID != "" && trxID != inv.GatewayTrxID {
		if err := s.Invoices.Update(ctx, inv.ID, map[string]any{"gateway_trx_id": trxID}); err == nil {
			inv.GatewayTrxID = trxID
		}
	}
	return inv, nil
}

// apply maps a remote status onto the local invoice. Anything outside
// the three known terminal statuses is a no-op.
func (s *InvoiceService) apply(ctx context.Context, invoice *models.Invoice, remote string, paidAmount int64) (*models.Invoice, error) {
	var local string
	switch remote {
	case tripay.RemotePaid:
		local = models.StatusPaid
	case tripay.RemoteExpired:
		local = models.StatusExpired
	case tripay.RemoteFailed:
		local = models.StatusFailed
	default:
		return invoice, nil
	}

	updates := map[string]any{"status": local}
	if local == models.StatusPaid && paidAmount > 0 {
		updates["paid_amount"] = paidAmount
	}
	if err := s.Invoices.Update(ctx, invoice.ID, updates); err != nil {
		return nil, err
	}

	updated, err := s.Invoices.Get(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	if local == models.StatusPaid {
		// Separate explicit call: the sales counter moves only on the
		// paid transition, via the store's atomic increment.
		for _, item := range updated.Items {
			if err := s.Products.IncrementSales(ctx, item.ProductID, int64(item.Quantity)); err != nil {
				logging.FromContext(ctx).Error("sales increment failed",
					"invoice_id", updated.ID, "product_id", item.ProductID, "error", err)
			}
		}
		s.publish(ctx, invoiceEvent("invoice_paid", updated))
	} else {
		s.publish(ctx, invoiceEvent("invoice_"+remoteEventSuffix(local), updated))
	}

	return updated, nil
}

// CleanupPending deletes Pending invoices older than the payment window.
// Run from the periodic cleanup loop.
func (s *InvoiceService) CleanupPending(ctx context.Context) (int64, error) {
	return s.Invoices.DeleteStalePending(ctx, PaymentWindow)
}

func (s *InvoiceService) publish(ctx context.Context, evt map[string]any) {
	if s.Producer == nil {
		return
	}
	key, _ := evt["invoice_id"].(string)
	if err := s.Producer.PublishEvent(ctx, events.TopicInvoiceEvents, key, evt); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "error", err)
	}
}

func invoiceEvent(kind string, inv *models.Invoice) map[string]any {
	return map[string]any{
		"type":       kind,
		"invoice_id": inv.ID,
		"email":      inv.Email,
		"amount":     inv.Amount,
		"status":     inv.Status,
	}
}

func remoteEventSuffix(local string) string {
	switch local {
	case models.StatusExpired:
		return "expired"
	case models.StatusFailed:
		return "failed"
	default:
		return "updated"
	}
}
