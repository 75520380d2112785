// Package notification delivers operational alerts to an external sink.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookReporter posts alerts as JSON to a configured URL. Delivery is
// fire-and-forget from the core's perspective: the core never retries it.
type WebhookReporter struct {
	url    string
	client *http.Client
}

// NewWebhookReporter creates a reporter posting to the given URL
func NewWebhookReporter(url string) *WebhookReporter {
	return &WebhookReporter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type payload struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Report sends one alert
func (r *WebhookReporter) Report(ctx context.Context, subject, content string) error {
	body, err := json.Marshal(payload{Subject: subject, Content: content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification sink returned %d", resp.StatusCode)
	}

	return nil
}
