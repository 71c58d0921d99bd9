package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
)

// Repository persists orders. Status updates are compare-and-set: the write
// only lands when the row still holds the expected prior state, so two
// concurrent transitions cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)

	// UpdateStatus moves the delivery status from prior to next, applying
	// extra column updates in the same statement. It reports whether the
	// guarded write landed.
	UpdateStatus(ctx context.Context, id uuid.UUID, prior, next enums.OrderStatus, extra map[string]any) (bool, error)

	// UpdatePaymentStatus is the payment-side equivalent of UpdateStatus.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, prior, next enums.PaymentStatus, extra map[string]any) (bool, error)

	SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error
}
