// Package notify delivers failure notifications when a pipeline stage hits an
// unrecoverable error. Delivery is fire-and-forget: a notifier that fails is
// logged and never escalates into the pipeline's own error path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Notifier is invoked by any pipeline stage on unrecoverable error.
type Notifier interface {
	Notify(ctx context.Context, stage string, at time.Time)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, stage string, at time.Time) {
	log.Printf("ETL failure in stage %s at %s", stage, at.Format(time.RFC3339))
}

// WebhookNotifier posts a JSON payload to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier builds a webhook notifier with a bounded request
// timeout so a dead endpoint cannot stall the caller.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Stage     string `json:"stage"`
	Timestamp string `json:"timestamp"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, stage string, at time.Time) {
	body, err := json.Marshal(webhookPayload{
		Stage:     stage,
		Timestamp: at.Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("notify: marshal payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Printf("notify: post to %s: %v", n.URL, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("notify: unexpected status %d from %s", resp.StatusCode, n.URL)
	}
}
