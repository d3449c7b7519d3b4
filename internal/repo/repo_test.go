package repo

import (
	"context"
	"testing"
	"time"

	"github.com/andriansyah/digistore/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Invoice{}, &models.InvoiceItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func seedProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	if p.ID == "" {
		p.ID = "p-" + p.Name
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedInvoice(t *testing.T, db *gorm.DB, inv models.Invoice) models.Invoice {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	require.NoError(t, db.Create(&inv).Error)
	return inv
}

func TestUserUpsertOnLogin(t *testing.T) {
	db := initTestDB(t)
	users := &UserRepo{DB: db, AdminEmail: "admin@store.test"}
	ctx := context.Background()

	user, err := users.UpsertOnLogin(ctx, "uid-buyer", "buyer@example.com", "Buyer")
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, user.Role)
	require.Equal(t, "uid-buyer", user.UID)
	require.False(t, user.Verified)
	require.False(t, user.JoinedAt.IsZero())

	// Second login touches activity, does not duplicate.
	again, err := users.UpsertOnLogin(ctx, "uid-buyer", "buyer@example.com", "Buyer")
	require.NoError(t, err)
	require.Equal(t, user.Email, again.Email)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUserUpsertAdmin(t *testing.T) {
	db := initTestDB(t)
	users := &UserRepo{DB: db, AdminEmail: "admin@store.test"}

	admin, err := users.UpsertOnLogin(context.Background(), "uid-admin", "admin@store.test", "Admin")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.True(t, admin.Verified)
}

func TestUserBannedRejected(t *testing.T) {
	db := initTestDB(t)
	users := &UserRepo{DB: db, AdminEmail: "admin@store.test"}
	ctx := context.Background()

	_, err := users.UpsertOnLogin(ctx, "uid-bad", "banned@example.com", "Bad")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "banned@example.com").
		Update("role", models.RoleBanned).Error)

	_, err = users.UpsertOnLogin(ctx, "uid-bad", "banned@example.com", "Bad")
	require.Error(t, err)
}

func TestUserDeleteProtectsAdmin(t *testing.T) {
	db := initTestDB(t)
	users := &UserRepo{DB: db, AdminEmail: "admin@store.test"}
	ctx := context.Background()

	_, err := users.UpsertOnLogin(ctx, "uid-admin", "admin@store.test", "Admin")
	require.NoError(t, err)

	require.Error(t, users.Delete(ctx, "admin@store.test"))

	_, err = users.UpsertOnLogin(ctx, "uid-buyer", "buyer@example.com", "Buyer")
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, "buyer@example.com"))
}

func TestUserEditProtectedFields(t *testing.T) {
	db := initTestDB(t)
	users := &UserRepo{DB: db, AdminEmail: "admin@store.test"}
	ctx := context.Background()

	_, err := users.UpsertOnLogin(ctx, "uid-buyer", "buyer@example.com", "Buyer")
	require.NoError(t, err)

	require.NoError(t, users.Edit(ctx, "buyer@example.com", map[string]any{
		"name": "Renamed",
		"uid":  "uid-forged",
		"role": models.RoleAdmin,
	}))

	user, err := users.Get(ctx, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, "Renamed", user.Name)
	require.Equal(t, "uid-buyer", user.UID)
	require.Equal(t, models.RoleUser, user.Role)
}

func TestProductIncrementSales(t *testing.T) {
	db := initTestDB(t)
	products := &ProductRepo{DB: db}
	ctx := context.Background()

	p := seedProduct(t, db, models.Product{Name: "game-topup", Price: 50000})

	require.NoError(t, products.IncrementSales(ctx, p.ID, 1))
	require.NoError(t, products.IncrementSales(ctx, p.ID, 3))

	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), got.Sales)
}

func TestProductIncrementSalesMissing(t *testing.T) {
	db := initTestDB(t)
	products := &ProductRepo{DB: db}

	require.Error(t, products.IncrementSales(context.Background(), "nope", 1))
}

func TestProductUpdateProtectsSales(t *testing.T) {
	db := initTestDB(t)
	products := &ProductRepo{DB: db}
	ctx := context.Background()

	p := seedProduct(t, db, models.Product{Name: "ebook", Price: 20000, Sales: 7})

	require.NoError(t, products.Update(ctx, p.ID, map[string]any{
		"price": int64(25000),
		"sales": int64(999),
	}))

	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(25000), got.Price)
	require.Equal(t, int64(7), got.Sales)
}

func TestTopProducts(t *testing.T) {
	db := initTestDB(t)
	products := &ProductRepo{DB: db}
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		seedProduct(t, db, models.Product{
			ID:             string(rune('a' + i)),
			Name:           "product",
			Price:          10000,
			Sales:          int64(i % 5),
			Show:           true,
			StockAvailable: true,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}

	top, err := products.TopProducts(ctx, 4)
	require.NoError(t, err)
	require.Len(t, top, 4)

	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		require.GreaterOrEqual(t, prev.Sales, cur.Sales)
		if prev.Sales == cur.Sales {
			// Ties break newest first.
			require.True(t, prev.CreatedAt.After(cur.CreatedAt) || prev.CreatedAt.Equal(cur.CreatedAt))
		}
	}
}

func TestTopProductsSkipsOutOfStockAndHidden(t *testing.T) {
	db := initTestDB(t)
	products := &ProductRepo{DB: db}

	seedProduct(t, db, models.Product{ID: "sold-out", Name: "a", Price: 1, Sales: 100, Show: true, StockAvailable: false})
	seedProduct(t, db, models.Product{ID: "hidden", Name: "b", Price: 1, Sales: 100, Show: false, StockAvailable: true})
	seedProduct(t, db, models.Product{ID: "ok", Name: "c", Price: 1, Sales: 1, Show: true, StockAvailable: true})

	top, err := products.TopProducts(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "ok", top[0].ID)
}

func TestInvoiceDeletePaidRefused(t *testing.T) {
	db := initTestDB(t)
	invoices := &InvoiceRepo{DB: db}
	ctx := context.Background()

	paid := seedInvoice(t, db, models.Invoice{
		ID: "inv-paid", Email: "buyer@example.com", Amount: 165000,
		Status: models.StatusPaid, MerchantRef: "INV-1",
	})
	pending := seedInvoice(t, db, models.Invoice{
		ID: "inv-pending", Email: "buyer@example.com", Amount: 165000,
		Status: models.StatusPending, MerchantRef: "INV-2",
	})

	require.Error(t, invoices.Delete(ctx, paid.ID))
	_, err := invoices.Get(ctx, paid.ID)
	require.NoError(t, err)

	require.NoError(t, invoices.Delete(ctx, pending.ID))
	_, err = invoices.Get(ctx, pending.ID)
	require.Error(t, err)
}

func TestInvoiceUpdatePaidStampsTimestamps(t *testing.T) {
	db := initTestDB(t)
	invoices := &InvoiceRepo{DB: db}
	ctx := context.Background()

	inv := seedInvoice(t, db, models.Invoice{
		ID: "inv-1", Email: "buyer@example.com", Amount: 165000,
		Status: models.StatusPending, MerchantRef: "INV-3",
	})

	require.NoError(t, invoices.Update(ctx, inv.ID, map[string]any{"status": models.StatusPaid}))

	got, err := invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	require.NotNil(t, got.DownloadExpiry)
	require.WithinDuration(t, got.PaidAt.Add(time.Hour), *got.DownloadExpiry, time.Second)
}

func TestInvoiceDeleteStalePending(t *testing.T) {
	db := initTestDB(t)
	invoices := &InvoiceRepo{DB: db}
	ctx := context.Background()

	seedInvoice(t, db, models.Invoice{
		ID: "stale", Email: "a@b.c", Amount: 1, Status: models.StatusPending,
		MerchantRef: "INV-4", CreatedAt: time.Now().Add(-20 * time.Minute),
	})
	seedInvoice(t, db, models.Invoice{
		ID: "fresh", Email: "a@b.c", Amount: 1, Status: models.StatusPending,
		MerchantRef: "INV-5", CreatedAt: time.Now(),
	})
	seedInvoice(t, db, models.Invoice{
		ID: "old-paid", Email: "a@b.c", Amount: 1, Status: models.StatusPaid,
		MerchantRef: "INV-6", CreatedAt: time.Now().Add(-20 * time.Minute),
	})

	n, err := invoices.DeleteStalePending(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = invoices.Get(ctx, "stale")
	require.Error(t, err)
	_, err = invoices.Get(ctx, "fresh")
	require.NoError(t, err)
	_, err = invoices.Get(ctx, "old-paid")
	require.NoError(t, err)
}

func TestInvoiceMerchantRefExists(t *testing.T) {
	db := initTestDB(t)
	invoices := &InvoiceRepo{DB: db}
	ctx := context.Background()

	seedInvoice(t, db, models.Invoice{
		ID: "inv-1", Email: "a@b.c", Amount: 1, Status: models.StatusPending, MerchantRef: "INV-7",
	})

	exists, err := invoices.MerchantRefExists(ctx, "INV-7")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = invoices.MerchantRefExists(ctx, "INV-8")
	require.NoError(t, err)
	require.False(t, exists)
}
