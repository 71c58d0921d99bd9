package products

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

type productCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ProductKey(productID string) string
}

// CreateInput carries a new product listing. ClientRef is the
// client-generated key embedded in offline payloads; a replayed create with
// a known ref returns the existing listing instead of a duplicate.
type CreateInput struct {
	SellerID    uuid.UUID
	Name        string
	Category    string
	Description *string
	Unit        string
	PriceCents  int64
	Quantity    int
	Region      string
	ClientRef   *string
}

// UpdateInput carries a partial product edit. Nil fields are untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Quantity    *int
	IsActive    *bool
}

// Service defines product listing operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filters ListFilters) ([]models.Product, error)
}

type service struct {
	logg     *logger.Logger
	repo     Repository
	cache    productCache
	cacheTTL time.Duration
}

// NewService builds a product service. The cache is optional; without one
// every read goes to the database.
func NewService(logg *logger.Logger, repo Repository, cache productCache, cacheTTL time.Duration) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{logg: logg, repo: repo, cache: cache, cacheTTL: cacheTTL}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if input.ClientRef != nil && *input.ClientRef != "" {
		existing, err := s.repo.FindByClientRef(ctx, *input.ClientRef)
		if err == nil {
			s.logg.Info(s.logg.WithField(ctx, "client_ref", *input.ClientRef),
				"replayed create matched existing listing")
			return existing, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lookup client ref")
		}
	}

	product := &models.Product{
		ID:          uuid.New(),
		SellerID:    input.SellerID,
		Name:        input.Name,
		Category:    input.Category,
		Description: input.Description,
		Unit:        defaultUnit(input.Unit),
		PriceCents:  input.PriceCents,
		Quantity:    input.Quantity,
		Region:      input.Region,
		IsActive:    true,
		ClientRef:   input.ClientRef,
	}
	if _, err := s.repo.Create(ctx, product); err != nil {
		// Two replays of the same offline create can race past the lookup;
		// the unique index decides and the loser returns the winner's row.
		if db.IsUniqueViolation(err, "") && input.ClientRef != nil {
			if existing, lookupErr := s.repo.FindByClientRef(ctx, *input.ClientRef); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price_cents"] = *input.PriceCents
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if _, err := s.fetch(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update product")
	}
	s.evict(ctx, id)
	return s.fetch(ctx, id)
}

// Get serves from the read cache when possible. A stale or missing entry
// falls through to the database and refreshes the cache.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cache.ProductKey(id.String()))
		if err == nil {
			var product models.Product
			if jsonErr := json.Unmarshal([]byte(raw), &product); jsonErr == nil {
				return &product, nil
			}
			// poisoned entry; drop it and reload
			s.evict(ctx, id)
		} else if err != redis.ErrCacheMiss {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", id.String()),
				"product cache read failed; falling back to database")
		}
	}

	product, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(product); err == nil {
			if err := s.cache.Set(ctx, s.cache.ProductKey(id.String()), encoded, s.cacheTTL); err != nil {
				s.logg.Warn(ctx, "product cache write failed")
			}
		}
	}
	return product, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]models.Product, error) {
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list products")
	}
	return rows, nil
}

func (s *service) fetch(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product")
	}
	return product, nil
}

func (s *service) evict(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.ProductKey(id.String())); err != nil {
		s.logg.Warn(ctx, "product cache evict failed")
	}
}

func validateCreateInput(input CreateInput) error {
	missing := map[string]any{}
	if input.SellerID == uuid.Nil {
		missing["seller_id"] = "is required"
	}
	if input.Name == "" {
		missing["name"] = "is required"
	}
	if input.Category == "" {
		missing["category"] = "is required"
	}
	if input.PriceCents <= 0 {
		missing["price_cents"] = "must be positive"
	}
	if input.Quantity < 0 {
		missing["quantity"] = "must not be negative"
	}
	if input.Region == "" {
		missing["region"] = "is required"
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(missing)
	}
	return nil
}

func defaultUnit(unit string) string {
	if unit == "" {
		return "kg"
	}
	return unit
}
