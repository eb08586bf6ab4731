// Package report runs on-demand status checks and formats probe results for
// notifiers.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/registry"
)

// FullCheck is the result of probing every registered service once.
type FullCheck struct {
	Results    []checker.Result
	AllHealthy bool
	CheckedAt  time.Time
}

// Report formats the check as a status report.
func (f FullCheck) Report() notify.Report {
	return Build(TitleStatus, f.Results)
}

// Reporter answers "what is the status right now" queries. It never touches
// outage state.
type Reporter struct {
	registry *registry.Registry
	checker  checker.Checker
	logger   *slog.Logger
}

// New creates a Reporter. Pass nil logger to use the default logger.
func New(reg *registry.Registry, c checker.Checker, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{registry: reg, checker: c, logger: logger}
}

// RunFullCheck probes every service concurrently and returns results in
// registry order.
func (r *Reporter) RunFullCheck(ctx context.Context) FullCheck {
	start := time.Now()
	results := checker.CheckAll(ctx, r.checker, r.registry.All())
	fc := FullCheck{
		Results:    results,
		AllHealthy: AllHealthy(results),
		CheckedAt:  start,
	}
	r.logger.Info("full check complete",
		"services", len(results),
		"all_healthy", fc.AllHealthy,
		"duration", time.Since(start),
	)
	return fc
}
