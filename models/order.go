package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is immutable once created except for the paid/status transition,
// which is applied at most once. TotalPrice is computed at creation and
// never recomputed.
type Order struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Paid                bool            `gorm:"not null;default:false" json:"paid"`
	StripePaymentIntent *string         `gorm:"size:200;uniqueIndex" json:"stripe_payment_intent,omitempty"`
	ShippingAddress     string          `gorm:"type:text" json:"shipping_address"`
	TotalPrice          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_price"`
	Status              string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Items               []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is a frozen copy of a cart line. UnitPrice snapshots the
// catalog price at order creation so later price changes cannot drift
// displayed line pricing away from the frozen order total.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
}
