// Package command binds the user-facing operations, querying status now and
// switching scheduled notifications on or off, to the reporter and scheduler.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/report"
	"github.com/hazz-dev/statusbot/internal/scheduler"
)

// Actions accepted by SetNotifications.
const (
	ActionActive  = "active"
	ActionDisable = "disable"
)

// User-visible responses.
const (
	MsgActivated     = "Notifications activated."
	MsgDeactivated   = "Notifications deactivated."
	MsgInvalidAction = "Invalid action. Use 'active' or 'disable'."
)

var (
	// ErrInvalidAction is returned for any action other than active or disable.
	ErrInvalidAction = errors.New("invalid action")
	// ErrMissingChannel is returned when notifications are activated without a channel.
	ErrMissingChannel = errors.New("channel is required")
)

// StatusReporter runs an on-demand check of every service.
type StatusReporter interface {
	RunFullCheck(ctx context.Context) report.FullCheck
}

// NotificationScheduler starts and stops scheduled notifications.
type NotificationScheduler interface {
	Start(channel string, interval time.Duration) error
	Stop()
	State() scheduler.State
}

// Surface implements the command operations.
type Surface struct {
	reporter  StatusReporter
	scheduler NotificationScheduler
	notifier  notify.Notifier
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Surface. interval is used whenever notifications are
// activated. Pass nil logger to use the default logger.
func New(r StatusReporter, s NotificationScheduler, n notify.Notifier, interval time.Duration, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		reporter:  r,
		scheduler: s,
		notifier:  n,
		interval:  interval,
		logger:    logger,
	}
}

// QueryStatus checks every service now. When channel is non-empty the report
// is also delivered there. Outage state is never modified.
func (s *Surface) QueryStatus(ctx context.Context, channel string) (report.FullCheck, error) {
	fc := s.reporter.RunFullCheck(ctx)
	if channel == "" {
		return fc, nil
	}
	if err := s.notifier.SendReport(ctx, channel, fc.Report()); err != nil {
		return fc, fmt.Errorf("delivering status report: %w", err)
	}
	return fc, nil
}

// SetNotifications starts (action "active") or stops (action "disable")
// scheduled notifications for channel. It returns the message to show the
// user; for unknown actions the message explains the valid ones and the error
// wraps ErrInvalidAction. Nothing changes on error.
func (s *Surface) SetNotifications(action, channel string) (string, error) {
	switch action {
	case ActionActive:
		if channel == "" {
			return "A channel is required to activate notifications.", ErrMissingChannel
		}
		if err := s.scheduler.Start(channel, s.interval); err != nil {
			return "", fmt.Errorf("starting notifications: %w", err)
		}
		s.logger.Info("notifications activated", "channel", channel, "interval", s.interval)
		return MsgActivated, nil
	case ActionDisable:
		s.scheduler.Stop()
		s.logger.Info("notifications deactivated")
		return MsgDeactivated, nil
	default:
		s.logger.Warn("rejected notification action", "action", action, "channel", channel)
		return MsgInvalidAction, fmt.Errorf("%w %q", ErrInvalidAction, action)
	}
}

// NotificationState reports the scheduler state.
func (s *Surface) NotificationState() scheduler.State {
	return s.scheduler.State()
}
