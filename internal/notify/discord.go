package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultDiscordBaseURL is the Discord REST API root.
const DefaultDiscordBaseURL = "https://discord.com/api/v10"

const (
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C

	// Discord rejects embeds with more fields than this.
	maxEmbedFields = 25
)

// Discord posts embeds to a channel through the bot REST API.
type Discord struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewDiscord creates a Discord notifier authenticated with a bot token.
// An empty baseURL selects DefaultDiscordBaseURL. Pass nil logger to use the
// default logger.
func NewDiscord(baseURL, token string, logger *slog.Logger) *Discord {
	if baseURL == "" {
		baseURL = DefaultDiscordBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title  string       `json:"title"`
	Color  int          `json:"color"`
	Fields []embedField `json:"fields"`
}

type messagePayload struct {
	Embeds []embed `json:"embeds"`
}

func statusMark(healthy bool) string {
	if healthy {
		return "✅"
	}
	return "❌"
}

func reportEmbeds(r Report) []embed {
	color := colorGreen
	if !r.AllHealthy {
		color = colorRed
	}
	entries := r.Entries
	var embeds []embed
	for {
		n := min(len(entries), maxEmbedFields)
		e := embed{Title: "**" + r.Title + "**", Color: color, Fields: make([]embedField, 0, n)}
		for _, entry := range entries[:n] {
			value := fmt.Sprintf("**Status:** %s\n**Response Time:** %s\n**Description:** %s",
				entry.Status, entry.Latency, entry.Description)
			e.Fields = append(e.Fields, embedField{Name: statusMark(entry.Healthy) + " " + entry.Service, Value: value})
		}
		embeds = append(embeds, e)
		entries = entries[n:]
		if len(entries) == 0 {
			return embeds
		}
	}
}

func (d *Discord) SendReport(ctx context.Context, channel string, r Report) error {
	return d.post(ctx, channel, messagePayload{Embeds: reportEmbeds(r)})
}

func (d *Discord) SendRecovery(ctx context.Context, channel string, r Recovery) error {
	value := fmt.Sprintf("**Status:** %s\n**Response Time:** %s\n**Recovery Duration:** %s\n**Description:** %s",
		r.Status, r.Latency, r.DurationText, r.Description)
	e := embed{
		Title:  "**" + r.Title + "**",
		Color:  colorGreen,
		Fields: []embedField{{Name: statusMark(true) + " " + r.Service, Value: value}},
	}
	return d.post(ctx, channel, messagePayload{Embeds: []embed{e}})
}

func (d *Discord) post(ctx context.Context, channel string, payload messagePayload) error {
	if channel == "" {
		return fmt.Errorf("discord: channel is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, url.PathEscape(channel))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	d.logger.Debug("discord message sent", "channel", channel, "embeds", len(payload.Embeds))
	return nil
}
