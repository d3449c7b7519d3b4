package repo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepo struct {
	DB *gorm.DB
}

// ListFilter carries at most one equality filter. When a filter is set
// the sort is dropped; when no filter is set results come back newest
// first. This mirrors the single-filter constraint the original store
// imposed and keeps listing queries on simple indexes.
type ListFilter struct {
	Show     *bool
	Category string
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{})

	switch {
	case filter.Show != nil:
		q = q.Where("show = ?", *filter.Show)
	case filter.Category != "":
		q = q.Where("category = ?", filter.Category)
	default:
		q = q.Order("created_at DESC")
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// TopProducts over-fetches three times the requested amount of visible
// products, then filters for stock and ranks in memory by sales, ties
// broken by recency. Good enough at catalog scale, not a ranking
// algorithm.
func (r *ProductRepo) TopProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 8
	}

	var candidates []models.Product
	if err := r.DB.WithContext(ctx).
		Where("show = ?", true).
		Limit(limit * 3).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	available := candidates[:0]
	for _, p := range candidates {
		if p.StockAvailable {
			available = append(available, p)
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Sales != available[j].Sales {
			return available[i].Sales > available[j].Sales
		}
		return available[i].CreatedAt.After(available[j].CreatedAt)
	})

	if len(available) > limit {
		available = available[:limit]
	}
	return available, nil
}

func (r *ProductRepo) Create(ctx context.Context, product *models.Product) error {
	if product.Name == "" || product.Price <= 0 {
		return apperr.Validation("product name and price are required")
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	return r.DB.WithContext(ctx).Create(product).Error
}

// Update applies partial changes. ID, created_at and the sales counter
// are protected; the counter only moves through IncrementSales.
func (r *ProductRepo) Update(ctx context.Context, id string, updates map[string]any) error {
	delete(updates, "id")
	delete(updates, "created_at")
	delete(updates, "sales")
	updates["updated_at"] = time.Now()

	res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

// IncrementSales bumps the sales counter with a single server-side
// UPDATE so concurrent purchase confirmations of the same product never
// lose an increment.
func (r *ProductRepo) IncrementSales(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		amount = 1
	}
	res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]any{
			"sales":      gorm.Expr("sales + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}
