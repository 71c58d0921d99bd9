package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/mobilemoney"
)

type paymentGateway interface {
	InitiatePayment(ctx context.Context, params mobilemoney.PaymentCreateParams) (*mobilemoney.PaymentResponse, error)
	ProcessRefund(ctx context.Context, params mobilemoney.RefundParams) (*mobilemoney.RefundResponse, error)
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)

	Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)

	ApplyPaymentCallback(ctx context.Context, input PaymentCallbackInput) error
}

type service struct {
	logg    *logger.Logger
	repo    Repository
	gateway paymentGateway
}

// NewService builds an order service with the required dependencies.
func NewService(logg *logger.Logger, repo Repository, gateway paymentGateway) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{logg: logg, repo: repo, gateway: gateway}, nil
}

// Create records the purchase and asks the gateway to charge the buyer. The
// order is persisted before the gateway call: a gateway failure leaves it
// pending/pending so payment can be retried without losing the purchase.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:             uuid.New(),
		BuyerID:        input.BuyerID,
		SellerID:       input.SellerID,
		ProductID:      input.ProductID,
		Quantity:       input.Quantity,
		UnitPriceCents: input.UnitPriceCents,
		TotalCents:     int64(input.Quantity) * input.UnitPriceCents,
		Currency:       "TZS",
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusPending,
		PaymentMethod:  input.PaymentMethod,
		PhoneNumber:    input.PhoneNumber,
	}
	if _, err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	resp, err := s.gateway.InitiatePayment(ctx, mobilemoney.PaymentCreateParams{
		AmountCents: order.TotalCents,
		PhoneNumber: order.PhoneNumber,
		Method:      order.PaymentMethod,
		OrderID:     order.ID.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "payment initiation failed; order stays payable", err)
		return nil, err
	}

	if err := s.repo.SetTransactionID(ctx, order.ID, resp.TransactionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record transaction id")
	}
	if _, err := s.repo.UpdatePaymentStatus(ctx, order.ID,
		enums.PaymentStatusPending, enums.PaymentStatusProcessing, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark payment processing")
	}

	order.TransactionID = &resp.TransactionID
	order.PaymentStatus = enums.PaymentStatusProcessing
	s.logg.Info(ctx, "order created and payment initiated")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return order, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list buyer orders")
	}
	return rows, nil
}

// Confirm is only available once the buyer's payment has settled.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusConfirmed {
		return order, nil
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot be confirmed while payment is %q", order.PaymentStatus))
	}
	return s.transition(ctx, orderID, enums.OrderStatusConfirmed, map[string]any{
		"confirmed_at": time.Now(),
	})
}

func (s *service) Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusShipped, map[string]any{
		"shipped_at": time.Now(),
	})
}

func (s *service) Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusDelivered, map[string]any{
		"delivered_at": time.Now(),
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason required")
	}
	return s.transition(ctx, input.OrderID, enums.OrderStatusCancelled, map[string]any{
		"cancel_reason": input.Reason,
		"cancelled_at":  time.Now(),
	})
}

// Refund reverses a delivered, fully paid order. The gateway refund runs
// first; the local state only moves once the provider has accepted it.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusRefunded) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q cannot be refunded", order.Status))
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded")
	}
	if order.TransactionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment transaction")
	}

	amount := input.AmountCents
	if amount <= 0 || amount > order.TotalCents {
		amount = order.TotalCents
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if _, err := s.gateway.ProcessRefund(ctx, mobilemoney.RefundParams{
		TransactionID: *order.TransactionID,
		AmountCents:   amount,
		Reason:        input.Reason,
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	moved, err := s.repo.UpdatePaymentStatus(ctx, order.ID,
		enums.PaymentStatusCompleted, enums.PaymentStatusRefunded, map[string]any{
			"refund_reason":       input.Reason,
			"refund_amount_cents": amount,
			"refunded_at":         now,
		})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark payment refunded")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	if _, err := s.repo.UpdateStatus(ctx, order.ID,
		order.Status, enums.OrderStatusRefunded, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark order refunded")
	}

	s.logg.Info(ctx, "order refunded")
	return s.Get(ctx, order.ID)
}

// ApplyPaymentCallback folds a verified gateway callback into the order.
// A duplicate completed callback is a no-op; a failed callback never touches
// the delivery status.
func (s *service) ApplyPaymentCallback(ctx context.Context, input PaymentCallbackInput) error {
	if input.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if input.Status != enums.PaymentStatusCompleted && input.Status != enums.PaymentStatusFailed {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("callback status must be completed or failed, got %q", input.Status))
	}

	order, err := s.repo.FindByTransactionID(ctx, input.TransactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no order for transaction")
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order by transaction")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithField(ctx, "callback_status", input.Status.String())

	if order.PaymentStatus == input.Status {
		s.logg.Info(ctx, "duplicate payment callback ignored")
		return nil
	}
	if !order.PaymentStatus.CanTransitionTo(input.Status) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment status %q cannot move to %q", order.PaymentStatus, input.Status))
	}

	moved, err := s.repo.UpdatePaymentStatus(ctx, order.ID, order.PaymentStatus, input.Status, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "apply payment callback")
	}
	if !moved {
		// Another callback landed between our read and write. If it reached
		// the same terminal state this one is a duplicate; otherwise the
		// provider sent conflicting outcomes.
		current, err := s.repo.FindByTransactionID(ctx, input.TransactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reload order after lost write")
		}
		if current.PaymentStatus == input.Status {
			s.logg.Info(ctx, "concurrent duplicate payment callback ignored")
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "payment status changed concurrently")
	}

	s.logg.Info(ctx, "payment callback applied")
	return nil
}

// transition loads the order, checks the state machine, and applies a
// guarded update. A lost guard means another writer moved the order first.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, extra map[string]any) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %q to %q", order.Status, next))
	}

	moved, err := s.repo.UpdateStatus(ctx, orderID, order.Status, next, extra)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order status")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	ctx = s.logg.WithField(ctx, "status", next.String())
	s.logg.Info(ctx, "order status updated")
	return s.Get(ctx, orderID)
}

func validateCreateInput(input CreateOrderInput) error {
	missing := map[string]any{}
	if input.BuyerID == uuid.Nil {
		missing["buyer_id"] = "is required"
	}
	if input.SellerID == uuid.Nil {
		missing["seller_id"] = "is required"
	}
	if input.ProductID == uuid.Nil {
		missing["product_id"] = "is required"
	}
	if input.Quantity <= 0 {
		missing["quantity"] = "must be positive"
	}
	if input.UnitPriceCents <= 0 {
		missing["unit_price_cents"] = "must be positive"
	}
	if !input.PaymentMethod.IsValid() {
		missing["payment_method"] = "must be a supported mobile money network"
	}
	if input.PhoneNumber == "" {
		missing["phone_number"] = "is required"
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order request").WithDetails(missing)
	}
	return nil
}
