package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/internal/orders"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/signature"
)

type stubApplier struct {
	applied []orders.PaymentCallbackInput
	err     error
}

func (s *stubApplier) ApplyPaymentCallback(ctx context.Context, input orders.PaymentCallbackInput) error {
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, input)
	return nil
}

type memoryIdempotencyStore struct {
	entries map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{entries: make(map[string]string)}
}

func (m *memoryIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.entries[key]
	if !ok {
		return "", errors.New("not found")
	}
	return value, nil
}

func (m *memoryIdempotencyStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.entries[key] = "1"
	return nil
}

func (m *memoryIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = "1"
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "mk:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

var testSecret = []byte("callback-secret")

func testCallbackService(t *testing.T, applier *stubApplier) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	guard, err := NewDedupeGuard(newMemoryIdempotencyStore(), time.Hour, DedupeScope)
	if err != nil {
		t.Fatalf("NewDedupeGuard: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger: logg,
		Orders: applier,
		Guard:  guard,
		Secret: testSecret,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func signedCallback(t *testing.T, transactionID, status string, amount int64) []byte {
	t.Helper()
	payload := map[string]any{
		"transaction_id": transactionID,
		"status":         status,
		"amount":         amount,
	}
	sig, err := signature.Sign(testSecret, payload)
	if err != nil {
		t.Fatalf("sign callback: %v", err)
	}
	payload["signature"] = sig
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return body
}

func TestProcessAppliesVerifiedCallback(t *testing.T) {
	applier := &stubApplier{}
	svc := testCallbackService(t, applier)

	body := signedCallback(t, "txn-1", "completed", 100000)
	if err := svc.Process(context.Background(), body); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("expected 1 applied callback, got %d", len(applier.applied))
	}
	got := applier.applied[0]
	if got.TransactionID != "txn-1" || got.Status != enums.PaymentStatusCompleted || got.AmountCents != 100000 {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestProcessRejectsTamperedBody(t *testing.T) {
	applier := &stubApplier{}
	svc := testCallbackService(t, applier)

	body := signedCallback(t, "txn-1", "completed", 100000)
	err := svc.Process(context.Background(), signedBodyWithAmount(t, body, 999999))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeVerification {
		t.Fatalf("expected VERIFICATION_ERROR, got %v", err)
	}
	if len(applier.applied) != 0 {
		t.Fatalf("tampered callback must never reach the order")
	}
}

// signedBodyWithAmount swaps the amount after signing, invalidating the
// signature without breaking the JSON.
func signedBodyWithAmount(t *testing.T, body []byte, amount int64) []byte {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	decoded["amount"] = amount
	out, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-encode body: %v", err)
	}
	return out
}

func TestProcessFailsClosedOnGarbage(t *testing.T) {
	applier := &stubApplier{}
	svc := testCallbackService(t, applier)

	for _, body := range [][]byte{nil, []byte(""), []byte("{"), []byte(`"just a string"`), []byte(`{"status":"completed"}`)} {
		err := svc.Process(context.Background(), body)
		if err == nil {
			t.Fatalf("expected rejection for %q", body)
		}
	}
	if len(applier.applied) != 0 {
		t.Fatalf("no garbage may reach the order")
	}
}

func TestProcessAbsorbsDuplicateDelivery(t *testing.T) {
	applier := &stubApplier{}
	svc := testCallbackService(t, applier)
	ctx := context.Background()

	body := signedCallback(t, "txn-2", "completed", 50000)
	if err := svc.Process(ctx, body); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := svc.Process(ctx, body); err != nil {
		t.Fatalf("duplicate delivery must succeed quietly: %v", err)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("duplicate must not be re-applied, got %d applications", len(applier.applied))
	}
}

func TestProcessReleasesMarkOnApplyFailure(t *testing.T) {
	applier := &stubApplier{err: pkgerrors.New(pkgerrors.CodePersistence, "db down")}
	svc := testCallbackService(t, applier)
	ctx := context.Background()

	body := signedCallback(t, "txn-3", "failed", 0)
	if err := svc.Process(ctx, body); err == nil {
		t.Fatalf("expected apply failure to surface")
	}

	// the gateway retries; now the database is back
	applier.err = nil
	if err := svc.Process(ctx, body); err != nil {
		t.Fatalf("retry after failure must apply: %v", err)
	}
	if len(applier.applied) != 1 {
		t.Fatalf("expected exactly one successful application, got %d", len(applier.applied))
	}
}
