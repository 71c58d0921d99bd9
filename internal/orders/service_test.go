package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/mobilemoney"
)

type stubOrdersRepo struct {
	orders map[uuid.UUID]*models.Order

	failStatusCAS  bool
	failPaymentCAS bool
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	clone := *order
	s.orders[order.ID] = &clone
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrdersRepo) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.TransactionID != nil && *order.TransactionID == transactionID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range s.orders {
		if order.BuyerID == buyerID {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, prior, next enums.OrderStatus, extra map[string]any) (bool, error) {
	if s.failStatusCAS {
		return false, nil
	}
	order, ok := s.orders[id]
	if !ok || order.Status != prior {
		return false, nil
	}
	order.Status = next
	return true, nil
}

func (s *stubOrdersRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, prior, next enums.PaymentStatus, extra map[string]any) (bool, error) {
	if s.failPaymentCAS {
		return false, nil
	}
	order, ok := s.orders[id]
	if !ok || order.PaymentStatus != prior {
		return false, nil
	}
	order.PaymentStatus = next
	return true, nil
}

func (s *stubOrdersRepo) SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	txn := transactionID
	order.TransactionID = &txn
	return nil
}

type stubGateway struct {
	initiateErr error
	refundErr   error
	refunds     []mobilemoney.RefundParams
	payments    []mobilemoney.PaymentCreateParams
}

func (s *stubGateway) InitiatePayment(ctx context.Context, params mobilemoney.PaymentCreateParams) (*mobilemoney.PaymentResponse, error) {
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	s.payments = append(s.payments, params)
	return &mobilemoney.PaymentResponse{TransactionID: "txn-" + params.OrderID, Status: "processing"}, nil
}

func (s *stubGateway) ProcessRefund(ctx context.Context, params mobilemoney.RefundParams) (*mobilemoney.RefundResponse, error) {
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	s.refunds = append(s.refunds, params)
	return &mobilemoney.RefundResponse{RefundID: "rf-1", TransactionID: params.TransactionID, Status: "refunded"}, nil
}

func testService(t *testing.T, repo *stubOrdersRepo, gateway *stubGateway) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(logg, repo, gateway)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func validCreateInput() CreateOrderInput {
	return CreateOrderInput{
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		ProductID:      uuid.New(),
		Quantity:       4,
		UnitPriceCents: 25000,
		PaymentMethod:  enums.PaymentMethodTigoPesa,
		PhoneNumber:    "0712345678",
	}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateInitiatesPayment(t *testing.T) {
	repo := newStubOrdersRepo()
	gateway := &stubGateway{}
	svc := testService(t, repo, gateway)

	order, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if order.TotalCents != 100000 {
		t.Fatalf("expected total 100000, got %d", order.TotalCents)
	}
	if order.PaymentStatus != enums.PaymentStatusProcessing {
		t.Fatalf("expected processing payment, got %s", order.PaymentStatus)
	}
	if order.TransactionID == nil || *order.TransactionID == "" {
		t.Fatalf("expected stored transaction id")
	}
	if len(gateway.payments) != 1 || gateway.payments[0].AmountCents != 100000 {
		t.Fatalf("unexpected gateway call %+v", gateway.payments)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := testService(t, newStubOrdersRepo(), &stubGateway{})

	input := validCreateInput()
	input.Quantity = 0
	input.PhoneNumber = ""
	_, err := svc.Create(context.Background(), input)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateKeepsOrderWhenGatewayFails(t *testing.T) {
	repo := newStubOrdersRepo()
	gateway := &stubGateway{initiateErr: pkgerrors.New(pkgerrors.CodeTransport, "gateway unreachable")}
	svc := testService(t, repo, gateway)

	_, err := svc.Create(context.Background(), validCreateInput())
	expectCode(t, err, pkgerrors.CodeTransport)

	if len(repo.orders) != 1 {
		t.Fatalf("order must persist for a later payment retry")
	}
	for _, order := range repo.orders {
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
			t.Fatalf("expected pending/pending, got %s/%s", order.Status, order.PaymentStatus)
		}
	}
}

func TestOrderLifecycleTransitions(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := testService(t, repo, &stubGateway{})
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Ship(ctx, order.ID); err == nil {
		t.Fatalf("pending order must not ship")
	} else {
		expectCode(t, err, pkgerrors.CodeStateConflict)
	}

	// unsettled payment blocks confirmation
	_, err = svc.Confirm(ctx, order.ID)
	expectCode(t, err, pkgerrors.CodeStateConflict)

	callback := PaymentCallbackInput{TransactionID: *order.TransactionID, Status: enums.PaymentStatusCompleted}
	if err := svc.ApplyPaymentCallback(ctx, callback); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	confirmed, err := svc.Confirm(ctx, order.ID)
	if err != nil || confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("Confirm failed: %v (%+v)", err, confirmed)
	}
	shipped, err := svc.Ship(ctx, order.ID)
	if err != nil || shipped.Status != enums.OrderStatusShipped {
		t.Fatalf("Ship failed: %v", err)
	}
	delivered, err := svc.Deliver(ctx, order.ID)
	if err != nil || delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("Deliver failed: %v", err)
	}

	_, err = svc.Cancel(ctx, CancelInput{OrderID: order.ID, Reason: "changed mind"})
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelRequiresReasonAndEarlyState(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := testService(t, repo, &stubGateway{})
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.Cancel(ctx, CancelInput{OrderID: order.ID})
	expectCode(t, err, pkgerrors.CodeValidation)

	cancelled, err := svc.Cancel(ctx, CancelInput{OrderID: order.ID, Reason: "buyer withdrew"})
	if err != nil || cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("Cancel failed: %v", err)
	}
}

func TestTransitionConflictWhenGuardLost(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := testService(t, repo, &stubGateway{})
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	callback := PaymentCallbackInput{TransactionID: *order.TransactionID, Status: enums.PaymentStatusCompleted}
	if err := svc.ApplyPaymentCallback(ctx, callback); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	repo.failStatusCAS = true
	_, err = svc.Confirm(ctx, order.ID)
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestApplyPaymentCallbackCompletes(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := testService(t, repo, &stubGateway{})
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	input := PaymentCallbackInput{TransactionID: *order.TransactionID, Status: enums.PaymentStatusCompleted}
	if err := svc.ApplyPaymentCallback(ctx, input); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	stored := repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", stored.PaymentStatus)
	}
	if stored.Status != enums.OrderStatusPending {
		t.Fatalf("payment callback must not touch delivery status, got %s", stored.Status)
	}

	// duplicate terminal callback is absorbed
	if err := svc.ApplyPaymentCallback(ctx, input); err != nil {
		t.Fatalf("duplicate callback must be a no-op, got %v", err)
	}

	// conflicting outcome after settlement is refused
	err = svc.ApplyPaymentCallback(ctx, PaymentCallbackInput{
		TransactionID: *order.TransactionID,
		Status:        enums.PaymentStatusFailed,
	})
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestApplyPaymentCallbackFailureKeepsDeliveryStatus(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := testService(t, repo, &stubGateway{})
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err = svc.ApplyPaymentCallback(ctx, PaymentCallbackInput{
		TransactionID: *order.TransactionID,
		Status:        enums.PaymentStatusFailed,
	})
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	stored := repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", stored.PaymentStatus)
	}
	if stored.Status != enums.OrderStatusPending {
		t.Fatalf("failed payment must leave delivery status alone, got %s", stored.Status)
	}
}

func TestApplyPaymentCallbackUnknownTransaction(t *testing.T) {
	svc := testService(t, newStubOrdersRepo(), &stubGateway{})

	err := svc.ApplyPaymentCallback(context.Background(), PaymentCallbackInput{
		TransactionID: "txn-missing",
		Status:        enums.PaymentStatusCompleted,
	})
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestRefundRequiresDeliveredAndPaid(t *testing.T) {
	repo := newStubOrdersRepo()
	gateway := &stubGateway{}
	svc := testService(t, repo, gateway)
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.Refund(ctx, RefundInput{OrderID: order.ID, Reason: "spoiled produce"})
	expectCode(t, err, pkgerrors.CodeStateConflict)

	if err := svc.ApplyPaymentCallback(ctx, PaymentCallbackInput{
		TransactionID: *order.TransactionID,
		Status:        enums.PaymentStatusCompleted,
	}); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if _, err := svc.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := svc.Ship(ctx, order.ID); err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if _, err := svc.Deliver(ctx, order.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	refunded, err := svc.Refund(ctx, RefundInput{OrderID: order.ID, Reason: "spoiled produce"})
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if refunded.Status != enums.OrderStatusRefunded || refunded.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded/refunded, got %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if len(gateway.refunds) != 1 || gateway.refunds[0].AmountCents != 100000 {
		t.Fatalf("unexpected gateway refund %+v", gateway.refunds)
	}
}

func TestRefundGatewayFailureLeavesStateAlone(t *testing.T) {
	repo := newStubOrdersRepo()
	gateway := &stubGateway{}
	svc := testService(t, repo, gateway)
	ctx := context.Background()

	order, err := svc.Create(ctx, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.ApplyPaymentCallback(ctx, PaymentCallbackInput{
		TransactionID: *order.TransactionID,
		Status:        enums.PaymentStatusCompleted,
	}); err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	for _, step := range []func(context.Context, uuid.UUID) (*models.Order, error){svc.Confirm, svc.Ship, svc.Deliver} {
		if _, err := step(ctx, order.ID); err != nil {
			t.Fatalf("transition failed: %v", err)
		}
	}

	gateway.refundErr = errors.New("provider timeout")
	_, err = svc.Refund(ctx, RefundInput{OrderID: order.ID, Reason: "late delivery"})
	if err == nil {
		t.Fatalf("expected refund error")
	}
	stored := repo.orders[order.ID]
	if stored.PaymentStatus != enums.PaymentStatusCompleted || stored.Status != enums.OrderStatusDelivered {
		t.Fatalf("failed refund must not move state, got %s/%s", stored.Status, stored.PaymentStatus)
	}
}
