package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mathias-bellec/MkulimaLink-sub002/api/middleware"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/connectivity"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/syncqueue"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db/models"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	pkgredis "github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

type memoryIdemStore struct {
	data map[string]string
}

var _ pkgredis.IdempotencyStore = (*memoryIdemStore)(nil)

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{data: make(map[string]string)}
}

func (s *memoryIdemStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (s *memoryIdemStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	s.data[key] = str
	return nil
}

func (s *memoryIdemStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	s.data[key] = str
	return true, nil
}

func (s *memoryIdemStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, id)
}

func (s *memoryIdemStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// TestDrainCarriesIdempotencyKeys runs a real drain against a server that
// enforces the Idempotency-Key requirement, then reruns the same actions
// to check the server absorbs them without applying twice.
func TestDrainCarriesIdempotencyKeys(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	applied := map[string]int{}
	handler := func(resource string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			applied[resource]++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"resource":"` + resource + `"}}`))
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.Idempotency(newMemoryIdemStore(), logg))
	router.Post("/api/v1/products", handler("product"))
	router.Post("/api/v1/transactions", handler("transaction"))

	server := httptest.NewServer(router)
	defer server.Close()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open queue db: %v", err)
	}
	if err := conn.AutoMigrate(&models.QueuedAction{}); err != nil {
		t.Fatalf("migrate queue table: %v", err)
	}
	queue, err := syncqueue.NewStore(conn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	if _, err := queue.Enqueue(ctx, enums.ActionCreateProduct, json.RawMessage(`{"name":"Mahindi"}`)); err != nil {
		t.Fatalf("Enqueue product: %v", err)
	}
	if _, err := queue.Enqueue(ctx, enums.ActionCreateTransaction, json.RawMessage(`{"order_id":"ord-1"}`)); err != nil {
		t.Fatalf("Enqueue transaction: %v", err)
	}
	pending, err := queue.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}

	monitor, err := connectivity.NewMonitor(logg)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	monitor.SetOnline(ctx, true)

	remote, err := NewRemoteClient(server.URL, "agent-token", time.Second)
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}
	engine, err := NewEngine(EngineParams{Logger: logg, Store: queue, Monitor: monitor})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.RegisterRemote(remote)

	result, err := engine.Sync(ctx, "manual")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Synced != 2 || result.Failed != 0 {
		t.Fatalf("expected full drain, got %+v", result)
	}
	if applied["product"] != 1 || applied["transaction"] != 1 {
		t.Fatalf("each action must apply exactly once, got %v", applied)
	}

	count, err := queue.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("drained queue must be empty, got %d", count)
	}

	// A crash between the server applying an action and the local Remove
	// leaves the row queued; the rerun must be absorbed, not re-applied.
	for _, action := range pending {
		var rerunErr error
		switch action.ActionType {
		case enums.ActionCreateProduct:
			rerunErr = remote.CreateProduct(ctx, action)
		case enums.ActionCreateTransaction:
			rerunErr = remote.CreateTransaction(ctx, action)
		}
		if rerunErr != nil {
			t.Fatalf("rerun of %s must replay the stored response, got %v", action.ActionType, rerunErr)
		}
	}
	if applied["product"] != 1 || applied["transaction"] != 1 {
		t.Fatalf("reruns must not apply twice, got %v", applied)
	}
}
