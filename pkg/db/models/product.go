package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a listing a farmer offers on the marketplace.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Category    string    `gorm:"column:category;type:text;not null"`
	Description *string   `gorm:"column:description"`
	Unit        string    `gorm:"column:unit;type:text;not null;default:'kg'"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	Region      string    `gorm:"column:region;type:text;not null"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`

	// ClientRef is the client-generated idempotency key embedded in offline
	// create payloads, so a replayed create never produces a second row.
	ClientRef *string `gorm:"column:client_ref;type:text;uniqueIndex"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
