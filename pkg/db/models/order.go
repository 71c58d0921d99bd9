package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
)

// Order is a buyer-seller purchase record. Delivery status and payment status
// evolve independently: payment_status is driven by gateway callbacks,
// status by buyer/seller/delivery actions. Orders are never deleted;
// cancellation and refund record reason and timestamp instead.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID       uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	ProductID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int                 `gorm:"column:quantity;not null"`
	UnitPriceCents int64               `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64               `gorm:"column:total_cents;not null"`
	Currency       string              `gorm:"column:currency;type:text;not null;default:'TZS'"`
	Status         enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PhoneNumber    string              `gorm:"column:phone_number;type:text;not null"`

	// TransactionID is the provider-side transaction identifier once a
	// payment has been initiated.
	TransactionID *string `gorm:"column:transaction_id;type:text;uniqueIndex"`

	CancelReason      *string    `gorm:"column:cancel_reason"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`
	RefundReason      *string    `gorm:"column:refund_reason"`
	RefundAmountCents *int64     `gorm:"column:refund_amount_cents"`
	RefundedAt        *time.Time `gorm:"column:refunded_at"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
