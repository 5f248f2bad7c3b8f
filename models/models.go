package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingAddress is captured once at order creation and never recomputed
// from the user's live address book.
type ShippingAddress struct {
	Name    string `gorm:"column:ship_name" json:"name"`
	Phone   string `gorm:"column:ship_phone" json:"phone"`
	Line    string `gorm:"column:ship_line" json:"line"`
	City    string `gorm:"column:ship_city" json:"city"`
	Country string `gorm:"column:ship_country" json:"country"`
}

// Order is the aggregate root. Orders are never deleted; cancellation is a
// terminal status, not a row removal. All monetary fields are integer minor
// currency units.
type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code           string          `gorm:"uniqueIndex;not null" json:"code"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Status         OrderStatus     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Total          int64           `gorm:"not null" json:"total"`
	DiscountAmount int64           `gorm:"not null;default:0" json:"discount_amount"`
	VatAmount      int64           `gorm:"not null;default:0" json:"vat_amount"`
	ShippingFee    int64           `gorm:"not null;default:0" json:"shipping_fee"`
	VoucherCode    string          `gorm:"type:varchar(64)" json:"voucher_code,omitempty"`
	Shipping       ShippingAddress `gorm:"embedded" json:"shipping"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Payments       []Payment       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payments"`
}

// OrderItem snapshots the variant's unit price at creation; it is never
// recomputed against the catalog's live price.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	VariantID uuid.UUID `gorm:"type:uuid;not null" json:"variant_id"`
	Price     int64     `gorm:"not null" json:"price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
}

// Payment is one settlement attempt against an order. An order may
// accumulate several rows over its life (e.g. method switched while
// PENDING). Raw keeps the provider payload verbatim for forensic replay.
type Payment struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Provider  PaymentProvider `gorm:"type:varchar(20);not null" json:"provider"`
	Status    PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Amount    int64           `gorm:"not null" json:"amount"`
	Raw       string          `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderStatusHistory is append-only. Actor is nil for unattributed changes
// and the literal "SYSTEM" for automated ones.
type OrderStatusHistory struct {
	ID         uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor      *string     `gorm:"type:varchar(64)" json:"actor,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Note       string      `json:"note,omitempty"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// Variant belongs to the catalog; this core only reads its price and moves
// its stock counter through the inventory ledger.
type Variant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU       string    `gorm:"uniqueIndex;not null" json:"sku"`
	Price     int64     `gorm:"not null" json:"price"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Cart persists across checkout; only its line items are cleared when an
// order is created from it.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;index" json:"cart_id"`
	VariantID uuid.UUID `gorm:"type:uuid;not null" json:"variant_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
}
