package connectivity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
)

func testMonitor(t *testing.T) *Monitor {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	monitor, err := NewMonitor(logg)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	return monitor
}

func TestBecameOnlineFiresOncePerTransition(t *testing.T) {
	monitor := testMonitor(t)
	ctx := context.Background()

	var fired int
	monitor.OnBecameOnline(func(context.Context) { fired++ })

	monitor.SetOnline(ctx, true)
	monitor.SetOnline(ctx, true)
	monitor.SetOnline(ctx, true)
	if fired != 1 {
		t.Fatalf("expected 1 notification, got %d", fired)
	}

	monitor.SetOnline(ctx, false)
	monitor.SetOnline(ctx, false)
	if fired != 1 {
		t.Fatalf("going offline must not notify, got %d", fired)
	}

	monitor.SetOnline(ctx, true)
	if fired != 2 {
		t.Fatalf("expected 2 notifications after second transition, got %d", fired)
	}
	if !monitor.Online() {
		t.Fatalf("expected online state")
	}
}

func TestStartsOffline(t *testing.T) {
	monitor := testMonitor(t)
	if monitor.Online() {
		t.Fatalf("monitor must start offline")
	}

	var fired int
	monitor.OnBecameOnline(func(context.Context) { fired++ })
	monitor.SetOnline(context.Background(), false)
	if fired != 0 {
		t.Fatalf("offline report on an offline monitor must not notify")
	}
}

func TestSyncSlotIsExclusive(t *testing.T) {
	monitor := testMonitor(t)

	if !monitor.TryBeginSync() {
		t.Fatalf("first claim must succeed")
	}
	if monitor.TryBeginSync() {
		t.Fatalf("second claim must fail while a drain is running")
	}
	if !monitor.Syncing() {
		t.Fatalf("expected syncing flag set")
	}

	monitor.EndSync()
	if monitor.Syncing() {
		t.Fatalf("expected syncing flag cleared")
	}
	if !monitor.TryBeginSync() {
		t.Fatalf("slot must be reclaimable after release")
	}
}

func TestHTTPProbeTreatsAnyResponseAsOnline(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := HTTPProbe(server.Client(), server.URL)
	if !probe(ctx) {
		t.Fatalf("a 503 still proves the network path works")
	}

	server.Close()
	if probe(ctx) {
		t.Fatalf("a refused connection means offline")
	}
}
