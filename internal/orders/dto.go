package orders

import (
	"github.com/google/uuid"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
)

// CreateOrderInput carries a buyer's purchase request.
type CreateOrderInput struct {
	BuyerID        uuid.UUID
	SellerID       uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
	PaymentMethod  enums.PaymentMethod
	PhoneNumber    string
}

// CancelInput records who cancelled an order and why.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
}

// RefundInput requests a full or partial refund of a delivered order.
type RefundInput struct {
	OrderID     uuid.UUID
	Reason      string
	AmountCents int64
}

// PaymentCallbackInput is the verified content of a gateway callback.
type PaymentCallbackInput struct {
	TransactionID string
	Status        enums.PaymentStatus
	AmountCents   int64
}
