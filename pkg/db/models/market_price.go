package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketPrice is a published per-unit commodity price for a regional market.
type MarketPrice struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Crop       string          `gorm:"column:crop;type:text;not null"`
	Market     string          `gorm:"column:market;type:text;not null"`
	Region     string          `gorm:"column:region;type:text;not null"`
	Unit       string          `gorm:"column:unit;type:text;not null;default:'kg'"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency   string          `gorm:"column:currency;type:text;not null;default:'TZS'"`
	RecordedAt time.Time       `gorm:"column:recorded_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MarketPrice) TableName() string {
	return "market_prices"
}
