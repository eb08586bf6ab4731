// Package notify delivers status reports and recovery notices to a chat channel.
package notify

import (
	"context"
	"errors"
	"time"
)

// Entry is one service line in a report.
type Entry struct {
	Service     string `json:"service"`
	Healthy     bool   `json:"healthy"`
	Status      string `json:"status"`
	Latency     string `json:"latency"`
	Description string `json:"description"`
}

// Report is a titled list of service entries in registry order.
type Report struct {
	Title      string  `json:"title"`
	AllHealthy bool    `json:"all_healthy"`
	Entries    []Entry `json:"entries"`
}

// Recovery announces that a single service is healthy again.
type Recovery struct {
	Title        string        `json:"title"`
	Service      string        `json:"service"`
	Status       string        `json:"status"`
	Latency      string        `json:"latency"`
	Duration     time.Duration `json:"-"`
	DurationText string        `json:"duration"`
	Description  string        `json:"description"`
}

// Notifier renders and delivers messages to a channel.
type Notifier interface {
	SendReport(ctx context.Context, channel string, r Report) error
	SendRecovery(ctx context.Context, channel string, r Recovery) error
}

// Multi fans every message out to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) SendReport(ctx context.Context, channel string, r Report) error {
	var errs []error
	for _, n := range m {
		if err := n.SendReport(ctx, channel, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendRecovery(ctx context.Context, channel string, r Recovery) error {
	var errs []error
	for _, n := range m {
		if err := n.SendRecovery(ctx, channel, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
