// Package outage tracks which services are currently down and for how long.
package outage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hazz-dev/statusbot/internal/checker"
)

// Kind is the transition produced by a single observation.
type Kind int

const (
	StillUp Kind = iota
	WentDown
	StillDown
	Recovered
)

func (k Kind) String() string {
	switch k {
	case StillUp:
		return "still_up"
	case WentDown:
		return "went_down"
	case StillDown:
		return "still_down"
	case Recovered:
		return "recovered"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Transition describes what an observation did to a service's state.
// DownSince is set for WentDown, StillDown and Recovered; Duration only for
// Recovered.
type Transition struct {
	Kind      Kind
	DownSince time.Time
	Duration  time.Duration
}

// Record is an open outage.
type Record struct {
	Service   string
	DownSince time.Time
}

// Tracker holds one Record per service that is currently down. A service
// without a record is up. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	down map[string]time.Time
}

// NewTracker returns a Tracker with every service up.
func NewTracker() *Tracker {
	return &Tracker{down: make(map[string]time.Time)}
}

// Observe applies one probe outcome for service at time now.
func (t *Tracker) Observe(service string, outcome checker.Outcome, now time.Time) Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	since, isDown := t.down[service]
	switch {
	case !outcome.Healthy() && !isDown:
		t.down[service] = now
		return Transition{Kind: WentDown, DownSince: now}
	case !outcome.Healthy():
		return Transition{Kind: StillDown, DownSince: since}
	case isDown:
		delete(t.down, service)
		d := now.Sub(since)
		if d < 0 {
			d = 0
		}
		return Transition{Kind: Recovered, DownSince: since, Duration: d}
	default:
		return Transition{Kind: StillUp}
	}
}

// DownSince returns when service went down, if it is currently down.
func (t *Tracker) DownSince(service string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.down[service]
	return since, ok
}

// Records returns a snapshot of open outages sorted by service name.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	records := make([]Record, 0, len(t.down))
	for svc, since := range t.down {
		records = append(records, Record{Service: svc, DownSince: since})
	}
	t.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Service < records[j].Service })
	return records
}

// Len returns the number of services currently down.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.down)
}
