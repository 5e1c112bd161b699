// Package notify posts job lifecycle events to a configured webhook,
// grounded on the teacher's webhook client: a goroutine-tracked HTTP
// POST client that never blocks the caller on delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
	"github.com/bravo1goingdark/schedcore/internal/logging"
)

// JobEvent is the payload posted to the webhook on a job state change.
type JobEvent struct {
	InternalID string          `json:"internal_id"`
	SourceUID  int             `json:"source_uid"`
	Package    string          `json:"package"`
	JobID      int64           `json:"job_id"`
	WorkType   jobmodel.WorkType `json:"work_type"`
	Status     string          `json:"status"` // started, completed, failed, cancelled
	At         time.Time       `json:"at"`
	Reason     string          `json:"reason,omitempty"`
}

// Client posts JobEvents to a webhook URL without blocking callers.
type Client struct {
	httpClient *http.Client
	log        logging.Logger
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
}

// NewClient creates a webhook client with a bounded per-request timeout.
func NewClient(log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Notify posts event to webhookURL in a tracked goroutine. An empty
// webhookURL is a no-op (no webhook configured).
func (c *Client) Notify(webhookURL string, event JobEvent) error {
	if webhookURL == "" {
		return nil
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("notify client is closed")
	}
	c.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "schedcore-notify/1.0")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			c.log.Warnf("webhook delivery failed: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.log.Warnf("webhook %s returned status %d", webhookURL, resp.StatusCode)
		}
	}()

	return nil
}

// Close waits for all in-flight webhook requests to complete.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}
