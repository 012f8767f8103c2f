// Package notifier informs the external application of presence transitions.
// The call is best-effort: callers fire it on its own goroutine, log the
// outcome, and never block a presence transition on the result.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusNotifier is the write-only sink the presence tracker reports to.
type StatusNotifier interface {
	Notify(ctx context.Context, userID, status string) error
}

// HTTPNotifier posts status transitions to the external user-status endpoint.
type HTTPNotifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNotifier(baseURL string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Notify issues POST {base}/user/{userId}/status with body {"status": ...}.
// A non-2xx response is an error; the caller only logs it.
func (n *HTTPNotifier) Notify(ctx context.Context, userID, status string) error {
	if userID == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("failed to encode status body: %w", err)
	}

	url := fmt.Sprintf("%s/user/%s/status", n.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status endpoint returned %d for user %s", resp.StatusCode, userID)
	}

	return nil
}
