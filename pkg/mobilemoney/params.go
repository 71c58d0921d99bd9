package mobilemoney

import (
	"strings"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
)

// PaymentCreateParams carries everything required to ask the provider for a
// customer charge. Amount is in the smallest currency unit.
type PaymentCreateParams struct {
	AmountCents    int64
	PhoneNumber    string
	Method         enums.PaymentMethod
	OrderID        string
	IdempotencyKey string
}

func (p PaymentCreateParams) validate() error {
	missing := map[string]string{}
	if p.AmountCents <= 0 {
		missing["amount"] = "must be a positive integer"
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		missing["phone_number"] = "is required"
	}
	if !p.Method.IsValid() {
		missing["payment_method"] = "must be one of tigopesa, halopesa, airtel_money"
	}
	if strings.TrimSpace(p.OrderID) == "" {
		missing["order_id"] = "is required"
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment request incomplete").WithDetails(missing)
	}
	return nil
}

// RefundParams describes a refund against a settled provider transaction.
type RefundParams struct {
	TransactionID string
	AmountCents   int64
	Reason        string
}

func (p RefundParams) validate() error {
	missing := map[string]string{}
	if strings.TrimSpace(p.TransactionID) == "" {
		missing["transaction_id"] = "is required"
	}
	if p.AmountCents <= 0 {
		missing["amount"] = "must be a positive integer"
	}
	if strings.TrimSpace(p.Reason) == "" {
		missing["reason"] = "is required"
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund request incomplete").WithDetails(missing)
	}
	return nil
}

// PaymentResponse is the provider's reply to initiate/status calls.
type PaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// RefundResponse is the provider's reply to a refund request.
type RefundResponse struct {
	RefundID      string `json:"refund_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

type providerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
