package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/outage"
	"github.com/hazz-dev/statusbot/internal/registry"
	"github.com/hazz-dev/statusbot/internal/report"
)

// deliveryTimeout bounds the notices and records of one pass once its
// transitions are committed.
const deliveryTimeout = 30 * time.Second

// Recorder stores what the scheduler observes. Failures are logged and do
// not affect notifications.
type Recorder interface {
	InsertCheck(ctx context.Context, r checker.Result) error
	InsertOutage(ctx context.Context, service string, downSince, recoveredAt time.Time) error
}

// Pass summarises one scheduled probe pass.
type Pass struct {
	ID        string
	Channel   string
	Results   []checker.Result
	Down      []string
	Recovered []string
}

// State is a snapshot of the scheduler.
type State struct {
	Running  bool          `json:"running"`
	Channel  string        `json:"channel,omitempty"`
	Interval time.Duration `json:"-"`
	Since    *time.Time    `json:"since,omitempty"`
}

// run is the Running state: one timer goroutine bound to one channel.
type run struct {
	channel  string
	interval time.Duration
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// Scheduler runs a probe pass over the registry on a fixed interval while
// notifications are active and reports down services and recoveries to a
// single channel. It is the only writer of the outage tracker.
type Scheduler struct {
	registry *registry.Registry
	checker  checker.Checker
	tracker  *outage.Tracker
	notifier notify.Notifier
	recorder Recorder
	onPass   func(Pass)
	clock    clockwork.Clock
	logger   *slog.Logger

	mu  sync.Mutex
	run *run // nil while stopped
}

// New creates a stopped Scheduler. Pass nil logger to use the default logger.
func New(reg *registry.Registry, c checker.Checker, tracker *outage.Tracker, n notify.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry: reg,
		checker:  c,
		tracker:  tracker,
		notifier: n,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
}

// SetClock replaces the clock used for ticks and outage timestamps.
// It must be called before Start.
func (s *Scheduler) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// SetRecorder sets where check results and closed outages are stored.
// It must be called before Start.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetOnPass sets a callback invoked after every completed pass.
// It must be called before Start.
func (s *Scheduler) SetOnPass(fn func(Pass)) {
	s.onPass = fn
}

// Tracker returns the outage tracker the scheduler writes to.
func (s *Scheduler) Tracker() *outage.Tracker {
	return s.tracker
}

// Start begins sending notifications to channel, running one pass now and
// one every interval. A previous subscription is stopped first, so only one
// timer is ever active.
func (s *Scheduler) Start(channel string, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	if channel == "" {
		return errors.New("channel is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		s.logger.Info("replacing notification subscription", "old_channel", s.run.channel, "new_channel", channel)
		s.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		channel:  channel,
		interval: interval,
		started:  s.clock.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.run = r
	go s.loop(ctx, r)

	s.logger.Info("notifications started", "channel", channel, "interval", interval)
	return nil
}

// Stop cancels the timer and waits for an in-flight pass to finish. No pass
// starts after Stop returns. It is a no-op when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return
	}
	channel := s.run.channel
	s.stopLocked()
	s.logger.Info("notifications stopped", "channel", channel)
}

func (s *Scheduler) stopLocked() {
	s.run.cancel()
	<-s.run.done
	s.run = nil
}

// State reports whether notifications are running and where they go.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return State{}
	}
	since := s.run.started
	return State{
		Running:  true,
		Channel:  s.run.channel,
		Interval: s.run.interval,
		Since:    &since,
	}
}

func (s *Scheduler) loop(ctx context.Context, r *run) {
	defer close(r.done)

	ticker := s.clock.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately.
	s.runPass(ctx, r.channel)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			s.runPass(ctx, r.channel)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, channel string) {
	pass := Pass{ID: uuid.NewString(), Channel: channel}
	logger := s.logger.With("pass", pass.ID, "channel", channel)

	pass.Results = checker.CheckAll(ctx, s.checker, s.registry.All())
	if ctx.Err() != nil {
		// Stopped mid-pass; canceled probes say nothing about service health.
		logger.Debug("probe pass abandoned")
		return
	}
	now := s.clock.Now()

	// Transitions observed below are committed to the tracker, so their
	// notices must be delivered even if Stop cancels ctx meanwhile.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	var failing []checker.Result
	for i, res := range pass.Results {
		if ctx.Err() != nil {
			logger.Debug("probe pass interrupted", "unobserved", len(pass.Results)-i)
			break
		}
		s.record(sendCtx, logger, res)

		t := s.tracker.Observe(res.ServiceName, res.Outcome, now)
		switch t.Kind {
		case outage.WentDown:
			logger.Warn("service down", "service", res.ServiceName, "outcome", res.Outcome, "error", res.Error)
			failing = append(failing, res)
			pass.Down = append(pass.Down, res.ServiceName)
		case outage.StillDown:
			logger.Info("service still down", "service", res.ServiceName, "down_since", t.DownSince)
			failing = append(failing, res)
			pass.Down = append(pass.Down, res.ServiceName)
		case outage.Recovered:
			logger.Info("service recovered", "service", res.ServiceName, "duration", t.Duration)
			pass.Recovered = append(pass.Recovered, res.ServiceName)
			if s.recorder != nil {
				if err := s.recorder.InsertOutage(sendCtx, res.ServiceName, t.DownSince, now); err != nil {
					logger.Error("storing outage", "service", res.ServiceName, "error", err)
				}
			}
			if err := s.notifier.SendRecovery(sendCtx, channel, report.Recovery(res, t.Duration)); err != nil {
				logger.Error("sending recovery notification", "service", res.ServiceName, "error", err)
			}
		}
	}

	if alert, ok := report.DownAlert(failing); ok {
		if err := s.notifier.SendReport(sendCtx, channel, alert); err != nil {
			logger.Error("sending down alert", "services", len(failing), "error", err)
		}
	}

	logger.Info("probe pass complete",
		"services", len(pass.Results),
		"down", len(pass.Down),
		"recovered", len(pass.Recovered),
	)
	if s.onPass != nil {
		s.onPass(pass)
	}
}

func (s *Scheduler) record(ctx context.Context, logger *slog.Logger, res checker.Result) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.InsertCheck(ctx, res); err != nil {
		logger.Error("storing check result", "service", res.ServiceName, "error", err)
	}
}
