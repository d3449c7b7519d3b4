package repo

import (
	"context"
	"errors"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/models"
	"gorm.io/gorm"
)

type InvoiceRepo struct {
	DB *gorm.DB
}

func (r *InvoiceRepo) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetByMerchantRef(ctx context.Context, merchantRef string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.DB.WithContext(ctx).Preload("Items").Where("merchant_ref = ?", merchantRef).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, err
	}
	return &inv, nil
}

// List returns invoices newest first, optionally restricted to one
// buyer's email.
func (r *InvoiceRepo) List(ctx context.Context, email, status string, limit, offset int) ([]models.Invoice, error) {
	q := r.DB.WithContext(ctx).Model(&models.Invoice{}).Preload("Items")
	if email != "" {
		q = q.Where("email = ?", email)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var invoices []models.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	return r.DB.WithContext(ctx).Create(inv).Error
}

// MerchantRefExists backs the regenerate-on-conflict loop of invoice
// creation; the unique index on merchant_ref is the actual guarantee.
func (r *InvoiceRepo) MerchantRefExists(ctx context.Context, merchantRef string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("merchant_ref = ?", merchantRef).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update applies partial changes to an invoice. ID, created_at, amount
// and items are immutable after creation. Setting status to Paid stamps
// paid_at (when absent) and opens the one-hour download window.
func (r *InvoiceRepo) Update(ctx context.Context, id string, updates map[string]any) error {
	delete(updates, "id")
	delete(updates, "created_at")
	delete(updates, "amount")
	delete(updates, "items")

	if status, ok := updates["status"].(string); ok && status == models.StatusPaid {
		if _, has := updates["paid_at"]; !has {
			now := time.Now()
			updates["paid_at"] = &now
			expiry := now.Add(time.Hour)
			updates["download_expiry"] = &expiry
		}
	}

	res := r.DB.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("invoice not found")
	}
	return nil
}

// Delete removes an invoice and its line items. A paid invoice can never
// be deleted.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	inv, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.Terminal() {
		return apperr.Forbidden("cannot delete a paid invoice")
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Invoice{}).Error
	})
}

// DeleteStalePending removes Pending invoices whose payment window has
// lapsed. Returns how many were removed.
func (r *InvoiceRepo) DeleteStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var stale []models.Invoice
	if err := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, inv := range stale {
		ids = append(ids, inv.ID)
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id IN ?", ids).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Invoice{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}
