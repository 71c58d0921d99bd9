// Package paymentwebhook receives mobile money gateway callbacks. Every
// callback is verified before it can touch an order; verification failure is
// always a rejection, never an exception.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mathias-bellec/MkulimaLink-sub002/internal/orders"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/metrics"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/signature"
)

// DedupeScope names the idempotency namespace for gateway callbacks.
const DedupeScope = "payment.callback"

type orderApplier interface {
	ApplyPaymentCallback(ctx context.Context, input orders.PaymentCallbackInput) error
}

type verifier func(secret []byte, body []byte) bool

// CallbackEvent is the payload the gateway posts on payment settlement.
type CallbackEvent struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	AmountCents   int64  `json:"amount"`
	Signature     string `json:"signature"`
}

// ServiceParams configure the callback service.
type ServiceParams struct {
	Logger  *logger.Logger
	Orders  orderApplier
	Guard   *DedupeGuard
	Secret  []byte
	Metrics *metrics.SyncMetrics

	// Verify can be overridden in tests; defaults to signature.Verify.
	Verify verifier
}

// Service verifies, dedupes, and applies payment callbacks.
type Service struct {
	logg    *logger.Logger
	orders  orderApplier
	guard   *DedupeGuard
	secret  []byte
	metrics *metrics.SyncMetrics
	verify  verifier
}

// NewService builds a payment callback service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order applier required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("dedupe guard required")
	}
	if len(params.Secret) == 0 {
		return nil, fmt.Errorf("callback secret required")
	}
	verify := params.Verify
	if verify == nil {
		verify = signature.Verify
	}
	return &Service{
		logg:    params.Logger,
		orders:  params.Orders,
		guard:   params.Guard,
		secret:  params.Secret,
		metrics: params.Metrics,
		verify:  verify,
	}, nil
}

// Process handles one raw callback body. An unverifiable callback is
// rejected without reading any of its content beyond the signature check.
func (s *Service) Process(ctx context.Context, body []byte) error {
	if !s.verify(s.secret, body) {
		s.recordCallback("rejected")
		s.logg.Warn(ctx, "payment callback failed signature verification")
		return pkgerrors.New(pkgerrors.CodeVerification, "callback signature invalid")
	}

	var event CallbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.recordCallback("rejected")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback payload")
	}
	if event.TransactionID == "" {
		s.recordCallback("rejected")
		return pkgerrors.New(pkgerrors.CodeValidation, "callback missing transaction id")
	}
	status, err := enums.ParsePaymentStatus(event.Status)
	if err != nil {
		s.recordCallback("rejected")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback status")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"transaction_id": event.TransactionID,
		"status":         status.String(),
	})

	callbackID := event.TransactionID + ":" + status.String()
	seen, err := s.guard.CheckAndMark(ctx, callbackID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "callback dedupe")
	}
	if seen {
		s.recordCallback("duplicate")
		s.logg.Info(ctx, "duplicate payment callback absorbed")
		return nil
	}

	if err := s.orders.ApplyPaymentCallback(ctx, orders.PaymentCallbackInput{
		TransactionID: event.TransactionID,
		Status:        status,
		AmountCents:   event.AmountCents,
	}); err != nil {
		// release the mark so the gateway's retry gets a clean attempt
		if forgetErr := s.guard.Forget(ctx, callbackID); forgetErr != nil {
			s.logg.Error(ctx, "failed to release callback dedupe mark", forgetErr)
		}
		s.recordCallback("failed")
		return err
	}

	s.recordCallback("accepted")
	s.logg.Info(ctx, "payment callback processed")
	return nil
}

func (s *Service) recordCallback(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncCallback(outcome)
}
