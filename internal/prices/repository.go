package prices

import (
	"context"

	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
)

// Repository persists published market prices.
type Repository interface {
	Record(ctx context.Context, price *models.MarketPrice) (*models.MarketPrice, error)
	Latest(ctx context.Context, crop, region string) (*models.MarketPrice, error)
	ListByRegion(ctx context.Context, region string) ([]models.MarketPrice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a market price repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Record(ctx context.Context, price *models.MarketPrice) (*models.MarketPrice, error) {
	if err := r.db.WithContext(ctx).Create(price).Error; err != nil {
		return nil, err
	}
	return price, nil
}

func (r *repository) Latest(ctx context.Context, crop, region string) (*models.MarketPrice, error) {
	var price models.MarketPrice
	err := r.db.WithContext(ctx).
		Where("crop = ? AND region = ?", crop, region).
		Order("recorded_at DESC").
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *repository) ListByRegion(ctx context.Context, region string) ([]models.MarketPrice, error) {
	var rows []models.MarketPrice
	err := r.db.WithContext(ctx).
		Where("region = ?", region).
		Order("recorded_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
