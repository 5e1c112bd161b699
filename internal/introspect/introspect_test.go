package introspect

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHubReportUpdatesLatest(t *testing.T) {
	h := NewHub()
	snap := Snapshot{Timestamp: time.Now(), PendingCount: 3, RunningCount: 2}
	h.Report(snap)

	got := h.Latest()
	if got.PendingCount != 3 || got.RunningCount != 2 {
		t.Errorf("expected latest snapshot to match reported one, got %+v", got)
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Report(Snapshot{PendingCount: 5})

	select {
	case snap := <-ch:
		if snap.PendingCount != 5 {
			t.Errorf("expected pending count 5, got %d", snap.PendingCount)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscriber to receive a broadcast snapshot")
	}
}

func TestHubDropsSlowSubscriberRatherThanBlocking(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	for i := 0; i < 20; i++ {
		h.Report(Snapshot{PendingCount: i})
	}
	// the subscriber channel has a small buffer; once full, further
	// reports must drop it instead of blocking Report.
	h.Report(Snapshot{PendingCount: 999})

	h.mu.RLock()
	_, stillSubscribed := h.clients[ch]
	h.mu.RUnlock()
	if stillSubscribed {
		t.Error("expected a slow subscriber to eventually be dropped")
	}
}

func TestServerHandleStatusReturnsJSON(t *testing.T) {
	h := NewHub()
	h.Report(Snapshot{PendingCount: 7})
	s := NewServer(h)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}
}
