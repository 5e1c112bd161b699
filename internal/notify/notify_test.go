package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/logging"
)

func TestNewClient(t *testing.T) {
	client := NewClient(logging.Noop())
	if client.httpClient == nil {
		t.Fatal("httpClient is nil")
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", client.httpClient.Timeout)
	}
}

func TestNotifyEmptyURLIsNoOp(t *testing.T) {
	client := NewClient(logging.Noop())
	if err := client.Notify("", JobEvent{Status: "completed"}); err != nil {
		t.Errorf("expected nil error for empty URL, got: %v", err)
	}
}

func TestNotifyPostsEventAndClosesCleanly(t *testing.T) {
	received := make(chan JobEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json content type")
		}

		var event JobEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		received <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(logging.Noop())
	event := JobEvent{
		InternalID: "abc-123",
		SourceUID:  1000,
		Package:    "com.example.app",
		JobID:      42,
		WorkType:   jobmodel.WorkTypeBG,
		Status:     "completed",
		At:         time.Now(),
	}

	if err := client.Notify(server.URL, event); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case got := <-received:
		if got.InternalID != event.InternalID {
			t.Errorf("expected internal id %q, got %q", event.InternalID, got.InternalID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected webhook to receive the event")
	}

	client.Close()
	if err := client.Notify(server.URL, event); err == nil {
		t.Error("expected Notify to fail after Close")
	}
}
