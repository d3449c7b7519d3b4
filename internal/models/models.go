package models

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleBanned = "banned"
)

// Invoice statuses. Pending is the only non-terminal state.
const (
	StatusPending   = "Pending"
	StatusPaid      = "Paid"
	StatusPaidLunas = "Paid_Lunas"
	StatusExpired   = "Expired"
	StatusFailed    = "Failed"
)

type User struct {
	Email        string    `gorm:"primaryKey"       json:"email"`
	UID          string    `gorm:"index"            json:"uid"`
	Name         string    `gorm:"not null"         json:"name"`
	Role         string    `gorm:"not null"         json:"role"`
	Verified     bool      `gorm:"default:false"    json:"verified"`
	JoinedAt     time.Time `gorm:"not null"         json:"joined_at"`
	LastActivity time.Time `gorm:"not null"         json:"last_activity"`
}

// ProductField is one extra field the buyer has to fill at purchase time,
// for example a game user id or a target email address.
type ProductField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Product struct {
	ID             string         `gorm:"primaryKey"          json:"id"`
	Name           string         `gorm:"not null"            json:"name"`
	Description    string         `json:"description"`
	Price          int64          `gorm:"not null"            json:"price"`
	OriginalPrice  int64          `json:"original_price"`
	Sales          int64          `gorm:"default:0"           json:"sales"`
	Rating         float64        `gorm:"default:5"           json:"rating"`
	Category       string         `gorm:"index"               json:"category"`
	ImageURL       string         `json:"image_url"`
	FileType       string         `json:"-"`
	FileData       string         `json:"-"`
	AdditionalInfo []ProductField `gorm:"serializer:json"     json:"additional_information"`
	StockAvailable bool           `gorm:"default:true;index"  json:"stock_available"`
	Show           bool           `gorm:"default:true;index"  json:"show"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// InvoiceItem is a snapshot of the product at purchase time, not a live
// join: name and price are copied so later product edits do not rewrite
// history.
type InvoiceItem struct {
	ID        uint   `gorm:"primaryKey"     json:"-"`
	InvoiceID string `gorm:"index;not null" json:"-"`
	ProductID string `gorm:"not null"       json:"product_id"`
	Name      string `gorm:"not null"       json:"name"`
	Price     int64  `gorm:"not null"       json:"price"`
	Quantity  uint   `gorm:"default:1"      json:"quantity"`
	FileType  string `json:"-"`
	FileData  string `json:"-"`
}

type Invoice struct {
	ID             string         `gorm:"primaryKey"           json:"id"`
	Email          string         `gorm:"index;not null"       json:"email"`
	UserID         string         `json:"user_id"`
	Amount         int64          `gorm:"not null"             json:"amount"`
	Items          []InvoiceItem  `gorm:"foreignKey:InvoiceID" json:"items"`
	QRString       string         `json:"qr_string"`
	QRURL          string         `json:"qr_url"`
	PaymentURL     string         `json:"payment_url"`
	CheckoutURL    string         `json:"checkout_url"`
	Status         string         `gorm:"not null;index"       json:"status"`
	PaymentMethod  string         `json:"payment_method"`
	AdditionalInfo []ProductField `gorm:"serializer:json"      json:"additional_information"`
	MerchantRef    string         `gorm:"uniqueIndex;not null" json:"merchant_ref"`
	GatewayRef     string         `json:"gateway_reference"`
	GatewayTrxID   string         `json:"gateway_trx_id"`
	PaidAmount     int64          `json:"paid_amount,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
	DownloadExpiry *time.Time     `json:"download_link_expires_at,omitempty"`
}

// Terminal reports whether the invoice already reached a paid state the
// reconciliation path must never overwrite.
func (i *Invoice) Terminal() bool {
	return i.Status == StatusPaid || i.Status == StatusPaidLunas
}

// DownloadOpen reports whether the buyer can still see the line-item file
// links: only once paid, and only within one hour of payment.
func (i *Invoice) DownloadOpen(now time.Time) bool {
	if !i.Terminal() {
		return false
	}
	if i.DownloadExpiry == nil {
		return false
	}
	return now.Before(*i.DownloadExpiry)
}
