package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	pkgerrors "github.com/mathias-bellec/MkulimaLink-sub002/pkg/errors"
)

func TestRemoteClientRoutesActions(t *testing.T) {
	type call struct {
		method  string
		path    string
		auth    string
		idemKey string
	}
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{
			method:  r.Method,
			path:    r.URL.Path,
			auth:    r.Header.Get("Authorization"),
			idemKey: r.Header.Get("Idempotency-Key"),
		})
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := NewRemoteClient(server.URL, "agent-token", time.Second)
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}
	ctx := context.Background()

	err = client.CreateProduct(ctx, models.QueuedAction{
		ClientRef: "ref-create", Payload: json.RawMessage(`{"name":"Mahindi"}`),
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	err = client.UpdateProduct(ctx, models.QueuedAction{
		ClientRef: "ref-update", Payload: json.RawMessage(`{"id":"prod-7","price_cents":90000}`),
	})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	err = client.CreateTransaction(ctx, models.QueuedAction{
		ClientRef: "ref-txn", Payload: json.RawMessage(`{"order_id":"ord-1"}`),
	})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	want := []call{
		{method: http.MethodPost, path: "/api/v1/products", auth: "Bearer agent-token", idemKey: "ref-create"},
		{method: http.MethodPut, path: "/api/v1/products/prod-7", auth: "Bearer agent-token", idemKey: "ref-update"},
		{method: http.MethodPost, path: "/api/v1/transactions", auth: "Bearer agent-token", idemKey: "ref-txn"},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, c := range calls {
		if c != want[i] {
			t.Fatalf("call %d: got %+v, want %+v", i, c, want[i])
		}
	}
}

func TestUpdateProductRequiresID(t *testing.T) {
	client, err := NewRemoteClient("http://localhost:0", "", time.Second)
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}

	err = client.UpdateProduct(context.Background(), models.QueuedAction{
		ClientRef: "ref-no-id", Payload: json.RawMessage(`{"price_cents":90000}`),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestRemoteClientMapsErrorClasses(t *testing.T) {
	status := http.StatusUnprocessableEntity
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client, err := NewRemoteClient(server.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}
	ctx := context.Background()

	err = client.CreateProduct(ctx, models.QueuedAction{ClientRef: "ref-1", Payload: json.RawMessage(`{}`)})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeRemoteRejection {
		t.Fatalf("expected REMOTE_REJECTION for 422, got %v", err)
	}

	status = http.StatusBadGateway
	err = client.CreateProduct(ctx, models.QueuedAction{ClientRef: "ref-1", Payload: json.RawMessage(`{}`)})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTransport {
		t.Fatalf("expected TRANSPORT_ERROR for 502, got %v", err)
	}

	server.Close()
	err = client.CreateProduct(ctx, models.QueuedAction{ClientRef: "ref-1", Payload: json.RawMessage(`{}`)})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTransport {
		t.Fatalf("expected TRANSPORT_ERROR for refused connection, got %v", err)
	}
}
