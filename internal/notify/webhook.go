package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts messages as JSON to a generic HTTP endpoint.
type Webhook struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhook creates a Webhook notifier for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

type webhookPayload struct {
	Source   string    `json:"source"`
	Kind     string    `json:"kind"`
	Channel  string    `json:"channel"`
	SentAt   string    `json:"sent_at"`
	Report   *Report   `json:"report,omitempty"`
	Recovery *Recovery `json:"recovery,omitempty"`

	RecoverySeconds *int64 `json:"recovery_seconds,omitempty"`
}

func (w *Webhook) SendReport(ctx context.Context, channel string, r Report) error {
	return w.send(ctx, webhookPayload{Kind: "report", Channel: channel, Report: &r})
}

func (w *Webhook) SendRecovery(ctx context.Context, channel string, r Recovery) error {
	secs := int64(r.Duration / time.Second)
	return w.send(ctx, webhookPayload{
		Kind:            "recovery",
		Channel:         channel,
		Recovery:        &r,
		RecoverySeconds: &secs,
	})
}

func (w *Webhook) send(ctx context.Context, payload webhookPayload) error {
	payload.Source = "statusbot"
	payload.SentAt = w.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
