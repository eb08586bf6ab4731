package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/outage"
)

const (
	TitleStatus    = "🛠️ Service Status"
	TitleDownAlert = "🚨 Service Down Alert"
	TitleRecovery  = "✅ Service Recovery Alert"

	descriptionRunning = "Service Running"
	descriptionDown    = "Service Down, check the server and upstream proxy"
)

// StatusLabel is the status shown for a result: the HTTP code when the
// endpoint answered, otherwise "No response" or "Error".
func StatusLabel(r checker.Result) string {
	switch {
	case r.Responded():
		return strconv.Itoa(r.StatusCode)
	case r.Outcome == checker.OutcomeError:
		return "Error"
	default:
		return "No response"
	}
}

// LatencyLabel renders latency in seconds with two decimals, or "N/A".
func LatencyLabel(r checker.Result) string {
	if !r.Responded() {
		return "N/A"
	}
	return fmt.Sprintf("%.2fs", r.Latency.Seconds())
}

// Description explains a result to a human.
func Description(r checker.Result) string {
	switch r.Outcome {
	case checker.OutcomeHealthy:
		return descriptionRunning
	case checker.OutcomeError:
		if r.Error != "" {
			return r.Error
		}
		return "Unexpected probe failure"
	default:
		return descriptionDown
	}
}

// EntryFor converts a probe result into a report entry.
func EntryFor(r checker.Result) notify.Entry {
	return notify.Entry{
		Service:     r.ServiceName,
		Healthy:     r.Outcome.Healthy(),
		Status:      StatusLabel(r),
		Latency:     LatencyLabel(r),
		Description: Description(r),
	}
}

// Build makes a report with one entry per result, in order.
func Build(title string, results []checker.Result) notify.Report {
	rep := notify.Report{
		Title:      title,
		AllHealthy: AllHealthy(results),
		Entries:    make([]notify.Entry, 0, len(results)),
	}
	for _, r := range results {
		rep.Entries = append(rep.Entries, EntryFor(r))
	}
	return rep
}

// AllHealthy reports whether every result is healthy.
func AllHealthy(results []checker.Result) bool {
	for _, r := range results {
		if !r.Outcome.Healthy() {
			return false
		}
	}
	return true
}

// DownAlert builds the batch alert for the failing results. ok is false when
// nothing failed and no alert should be sent.
func DownAlert(results []checker.Result) (rep notify.Report, ok bool) {
	var failing []checker.Result
	for _, r := range results {
		if !r.Outcome.Healthy() {
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		return notify.Report{}, false
	}
	return Build(TitleDownAlert, failing), true
}

// Recovery builds the notice for a service that came back after d.
func Recovery(r checker.Result, d time.Duration) notify.Recovery {
	return notify.Recovery{
		Title:        TitleRecovery,
		Service:      r.ServiceName,
		Status:       StatusLabel(r),
		Latency:      LatencyLabel(r),
		Duration:     d,
		DurationText: outage.FormatDuration(d),
		Description:  Description(r),
	}
}
