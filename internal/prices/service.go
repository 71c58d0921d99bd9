// Package prices serves regional market prices, the most-read and least
// fresh-critical data on the platform, through a short-lived cache.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

type priceCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PriceKey(crop, region string) string
}

// RecordInput publishes a new observed market price.
type RecordInput struct {
	Crop       string
	Market     string
	Region     string
	Unit       string
	Price      decimal.Decimal
	RecordedAt time.Time
}

// Service defines market price operations.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.MarketPrice, error)
	Latest(ctx context.Context, crop, region string) (*models.MarketPrice, error)
	ListByRegion(ctx context.Context, region string) ([]models.MarketPrice, error)
}

type service struct {
	logg     *logger.Logger
	repo     Repository
	cache    priceCache
	cacheTTL time.Duration
}

// NewService builds a market price service. The cache is optional.
func NewService(logg *logger.Logger, repo Repository, cache priceCache, cacheTTL time.Duration) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("prices repository required")
	}
	return &service{logg: logg, repo: repo, cache: cache, cacheTTL: cacheTTL}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.MarketPrice, error) {
	missing := map[string]any{}
	if input.Crop == "" {
		missing["crop"] = "is required"
	}
	if input.Market == "" {
		missing["market"] = "is required"
	}
	if input.Region == "" {
		missing["region"] = "is required"
	}
	if !input.Price.IsPositive() {
		missing["price"] = "must be positive"
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid market price").WithDetails(missing)
	}

	recordedAt := input.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	unit := input.Unit
	if unit == "" {
		unit = "kg"
	}

	price := &models.MarketPrice{
		Crop:       input.Crop,
		Market:     input.Market,
		Region:     input.Region,
		Unit:       unit,
		Price:      input.Price,
		Currency:   "TZS",
		RecordedAt: recordedAt,
	}
	if _, err := s.repo.Record(ctx, price); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record market price")
	}

	// A fresher observation supersedes whatever the cache holds.
	if s.cache != nil {
		if encoded, err := json.Marshal(price); err == nil {
			if err := s.cache.Set(ctx, s.cache.PriceKey(price.Crop, price.Region), encoded, s.cacheTTL); err != nil {
				s.logg.Warn(ctx, "price cache write failed")
			}
		}
	}
	return price, nil
}

func (s *service) Latest(ctx context.Context, crop, region string) (*models.MarketPrice, error) {
	if crop == "" || region == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop and region are required")
	}

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cache.PriceKey(crop, region))
		if err == nil {
			var price models.MarketPrice
			if jsonErr := json.Unmarshal([]byte(raw), &price); jsonErr == nil {
				return &price, nil
			}
		} else if err != redis.ErrCacheMiss {
			s.logg.Warn(ctx, "price cache read failed; falling back to database")
		}
	}

	price, err := s.repo.Latest(ctx, crop, region)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no price recorded for crop in region")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load market price")
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(price); err == nil {
			if err := s.cache.Set(ctx, s.cache.PriceKey(crop, region), encoded, s.cacheTTL); err != nil {
				s.logg.Warn(ctx, "price cache write failed")
			}
		}
	}
	return price, nil
}

func (s *service) ListByRegion(ctx context.Context, region string) ([]models.MarketPrice, error) {
	if region == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region is required")
	}
	rows, err := s.repo.ListByRegion(ctx, region)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list market prices")
	}
	return rows, nil
}
