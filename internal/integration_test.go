package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/command"
	"github.com/hazz-dev/statusbot/internal/config"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/outage"
	"github.com/hazz-dev/statusbot/internal/registry"
	"github.com/hazz-dev/statusbot/internal/report"
	"github.com/hazz-dev/statusbot/internal/scheduler"
	"github.com/hazz-dev/statusbot/internal/server"
	"github.com/hazz-dev/statusbot/internal/storage"
)

// webhookSink collects payloads posted by the webhook notifier.
type webhookSink struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
}

func (s *webhookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *webhookSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []string
	for _, p := range s.payloads {
		kinds = append(kinds, p["kind"].(string))
	}
	return kinds
}

func (s *webhookSink) last() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[len(s.payloads)-1]
}

// TestIntegration_FullFlow verifies the complete pipeline:
// API → command surface → scheduler → checker → tracker → notifier + storage → API
func TestIntegration_FullFlow(t *testing.T) {
	// 1. Start a fake HTTP target whose health can be switched
	var healthy atomic.Bool
	healthy.Store(true)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer target.Close()

	sink := &webhookSink{}
	hook := httptest.NewServer(sink)
	defer hook.Close()

	// 2. Open in-memory SQLite
	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	// 3. Wire the components
	reg, err := registry.New([]config.Service{{Name: "test-api", URL: target.URL}})
	if err != nil {
		t.Fatal(err)
	}
	probe := checker.NewHTTP(5 * time.Second)
	notifier := notify.NewWebhook(hook.URL)
	tracker := outage.NewTracker()
	clock := clockwork.NewFakeClock()
	passes := make(chan scheduler.Pass, 8)

	sched := scheduler.New(reg, probe, tracker, notifier, nil)
	sched.SetClock(clock)
	sched.SetRecorder(db)
	sched.SetOnPass(func(p scheduler.Pass) { passes <- p })
	defer sched.Stop()

	surface := command.New(report.New(reg, probe, nil), sched, notifier, time.Minute, nil)
	router := server.New(db, reg, surface, tracker, nil).Router()

	waitPass := func() scheduler.Pass {
		t.Helper()
		select {
		case p := <-passes:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for probe pass")
			return scheduler.Pass{}
		}
	}
	tick := func() {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("ticker never registered: %v", err)
		}
		clock.Advance(time.Minute)
	}

	// 4. Activate notifications over the API; the first pass runs immediately
	body, _ := json.Marshal(map[string]string{"action": "active", "channel": "ops"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/notifications", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("activating notifications: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	p := waitPass()
	if len(p.Down) != 0 || len(p.Recovered) != 0 {
		t.Errorf("expected a quiet first pass, got %+v", p)
	}
	if kinds := sink.kinds(); len(kinds) != 0 {
		t.Errorf("expected no notifications while healthy, got %v", kinds)
	}

	// 5. Service goes down: one down alert
	healthy.Store(false)
	tick()
	p = waitPass()
	if len(p.Down) != 1 || p.Down[0] != "test-api" {
		t.Fatalf("expected test-api down, got %v", p.Down)
	}
	if kinds := sink.kinds(); len(kinds) != 1 || kinds[0] != "report" {
		t.Fatalf("expected one report notification, got %v", kinds)
	}

	// On-demand queries while down leave the open outage alone
	downSince, ok := tracker.DownSince("test-api")
	if !ok {
		t.Fatal("expected an open outage for test-api")
	}
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 from /api/status, got %d", w.Code)
		}
		if since, ok := tracker.DownSince("test-api"); !ok || !since.Equal(downSince) {
			t.Fatalf("status query %d changed the outage record: %v (open=%v)", i+1, since, ok)
		}
	}
	if tracker.Len() != 1 {
		t.Errorf("expected 1 open outage, got %d", tracker.Len())
	}
	if kinds := sink.kinds(); len(kinds) != 1 {
		t.Errorf("expected status queries to send nothing, got %v", kinds)
	}

	// 6. Service recovers one minute later: one recovery notice
	healthy.Store(true)
	tick()
	p = waitPass()
	if len(p.Recovered) != 1 {
		t.Fatalf("expected a recovery, got %+v", p)
	}
	if kinds := sink.kinds(); len(kinds) != 2 || kinds[1] != "recovery" {
		t.Fatalf("expected report then recovery, got %v", kinds)
	}
	recovery := sink.last()["recovery"].(map[string]interface{})
	if recovery["duration"] != "1 minutes 0 seconds" {
		t.Errorf("expected recovery duration '1 minutes 0 seconds', got %v", recovery["duration"])
	}
	if tracker.Len() != 0 {
		t.Errorf("expected no open outages, got %d", tracker.Len())
	}

	// 7. Storage holds three checks and one closed outage
	_, total, err := db.ServiceHistory(context.Background(), "test-api", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("expected 3 stored checks, got %d", total)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/outages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/outages, got %d", w.Code)
	}
	var outages struct {
		Data struct {
			Current []interface{}    `json:"current"`
			Recent  []storage.Outage `json:"recent"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&outages); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(outages.Data.Current) != 0 {
		t.Errorf("expected no current outages, got %v", outages.Data.Current)
	}
	if len(outages.Data.Recent) != 1 || outages.Data.Recent[0].DurationMs != 60000 {
		t.Errorf("expected one 60s outage, got %+v", outages.Data.Recent)
	}

	// 8. The services endpoint reflects the latest check
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/services", nil))
	var services struct {
		Data []struct {
			Name      string  `json:"name"`
			Status    string  `json:"status"`
			UptimePct float64 `json:"uptime_percent"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&services); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(services.Data) != 1 || services.Data[0].Status != "healthy" {
		t.Fatalf("unexpected services response: %+v", services.Data)
	}

	// 9. An on-demand status query neither notifies nor touches outage state
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /api/status, got %d", w.Code)
	}
	if kinds := sink.kinds(); len(kinds) != 2 {
		t.Errorf("expected no extra notifications, got %v", kinds)
	}
	if tracker.Len() != 0 {
		t.Errorf("expected status query to leave no outage records, got %d", tracker.Len())
	}

	// 10. Disable notifications
	body, _ = json.Marshal(map[string]string{"action": "disable"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/notifications", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("disabling notifications: expected 200, got %d", w.Code)
	}
	if sched.State().Running {
		t.Error("expected scheduler to be stopped")
	}
}
