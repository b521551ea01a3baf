package model

import "time"

// Order status values. Transitions are driven only by webhook events:
// pending -> {paid, failed, expired}, paid -> refunded.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
	OrderStatusFailed    = "failed"
	OrderStatusExpired   = "expired"
)

// Payment status values for the single-item payment flow.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusExpired   = "expired"
)

const (
	TrackStatusDraft     = "draft"
	TrackStatusPublished = "published"
)

type User struct {
	ID        string `gorm:"primaryKey;size:36;not null"`
	Email     string `gorm:"size:255;uniqueIndex;not null"`
	Name      string `gorm:"size:255"`
	IsAdmin   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Track struct {
	ID          string `gorm:"primaryKey;size:36;not null"`
	UserID      string `gorm:"size:36;index;not null"` // creator/admin
	Name        string `gorm:"size:255;not null"`
	Artist      string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Duration    int32  `gorm:"not null"` // seconds
	AudioURL    string `gorm:"size:512"`
	CoverURL    string `gorm:"size:512"`
	Status      string `gorm:"size:32;index;not null"` // draft, published
	PlayCount   int64  `gorm:"not null;default:0"`

	Prices []TrackPrice `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TrackPrice struct {
	ID            string `gorm:"primaryKey;size:36;not null"`
	TrackID       string `gorm:"size:36;index;not null"`
	LicenseType   string `gorm:"size:64;not null"` // e.g. mp3_lease, exclusive
	Amount        int64  `gorm:"not null"`         // minor currency units
	Currency      string `gorm:"size:8;not null"`
	StripePriceID string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	ID          string `gorm:"primaryKey;size:36;not null"`
	OrderNumber string `gorm:"size:16;uniqueIndex;not null"` // YYYYMMDD-NNNN
	// nil for guest orders, attributed only via the billing snapshot
	UserID        *string `gorm:"size:36;index"`
	Status        string  `gorm:"size:32;index;not null"`
	Subtotal      int64   `gorm:"not null"` // minor currency units
	Tax           int64   `gorm:"not null"`
	Total         int64   `gorm:"not null"`
	Currency      string  `gorm:"size:8;not null"`
	CustomerEmail string  `gorm:"size:255"` // billing snapshot at checkout
	CustomerName  string  `gorm:"size:255"`
	// at most one order per checkout session, enforced by the unique index
	StripeSessionID string `gorm:"size:128;uniqueIndex;not null"`
	StripePaymentID string `gorm:"size:128;index"`
	Notes           string `gorm:"type:text"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is created once with its order and never mutated.
type OrderItem struct {
	ID      string `gorm:"primaryKey;size:36;not null"`
	OrderID string `gorm:"size:36;index;not null"`
	// tracks may be deleted after purchase; the reference goes nil, never dangling
	TrackID       *string `gorm:"size:36;index"`
	TrackPriceID  *string `gorm:"size:36"`
	LicenseType   string  `gorm:"size:64;not null"`
	Quantity      int32   `gorm:"not null"`
	UnitPrice     int64   `gorm:"not null"`
	TotalPrice    int64   `gorm:"not null"` // unit price * quantity
	StripePriceID string  `gorm:"size:64"`

	CreatedAt time.Time
}

// Payment records a single-item checkout session, independent of Order.
type Payment struct {
	ID              string `gorm:"primaryKey;size:36;not null"`
	Amount          int64  `gorm:"not null"`
	Currency        string `gorm:"size:8;not null"`
	Status          string `gorm:"size:32;index;not null"`
	StripeSessionID string `gorm:"size:128;uniqueIndex;not null"`
	StripePaymentID string `gorm:"size:128;index"`
	Description     string `gorm:"size:512"`
	Metadata        string `gorm:"type:text"` // raw JSON bag from the session
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WebhookEvent is the processed-event ledger used to drop duplicate
// deliveries before dispatch.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
