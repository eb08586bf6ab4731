package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hazz-dev/statusbot/internal/storage"
)

const defaultServerURL = "http://localhost:8080"

// apiClient talks to the HTTP API of a running statusbot server.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// do sends a request and decodes the envelope's data into v. A non-2xx
// response is returned as an error carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, body, v interface{}) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		if env.Error == "" {
			env.Error = http.StatusText(resp.StatusCode)
		}
		return errors.New(env.Error)
	}
	if v != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// SetNotifications runs the set_notifications command on the server and
// returns its message.
func (c *apiClient) SetNotifications(ctx context.Context, action, channel string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/notifications", map[string]string{
		"action":  action,
		"channel": channel,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// AllLatest returns the latest check of every service the server has checked.
func (c *apiClient) AllLatest(ctx context.Context) ([]storage.Check, error) {
	var services []struct {
		Name        string     `json:"name"`
		Status      string     `json:"status"`
		StatusCode  *int       `json:"status_code"`
		LatencyMs   *int64     `json:"latency_ms"`
		LastChecked *time.Time `json:"last_checked"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/services", nil, &services); err != nil {
		return nil, err
	}

	checks := make([]storage.Check, 0, len(services))
	for _, s := range services {
		if s.LastChecked == nil {
			continue
		}
		checks = append(checks, storage.Check{
			Service:    s.Name,
			Outcome:    s.Status,
			StatusCode: s.StatusCode,
			LatencyMs:  s.LatencyMs,
			CheckedAt:  *s.LastChecked,
		})
	}
	return checks, nil
}
