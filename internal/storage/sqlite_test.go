package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeResult(service string, outcome checker.Outcome, latencyMs int64) checker.Result {
	r := checker.Result{
		ServiceName: service,
		Outcome:     outcome,
		CheckedAt:   time.Now().UTC(),
	}
	switch outcome {
	case checker.OutcomeHealthy:
		r.StatusCode = 200
		r.Latency = time.Duration(latencyMs) * time.Millisecond
	case checker.OutcomeUnhealthy:
		r.StatusCode = 503
		r.Latency = time.Duration(latencyMs) * time.Millisecond
	default:
		r.Error = "connection refused"
	}
	return r
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	// If we can insert, schema is correct.
	err := db.InsertCheck(context.Background(), makeResult("api", checker.OutcomeHealthy, 42))
	if err != nil {
		t.Fatalf("InsertCheck after Open: %v", err)
	}
}

func TestInsertCheck_And_LatestCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.InsertCheck(ctx, makeResult("api", checker.OutcomeHealthy, 42)); err != nil {
		t.Fatalf("InsertCheck: %v", err)
	}

	got, err := db.LatestCheck(ctx, "api")
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if got == nil {
		t.Fatal("expected a check, got nil")
	}
	if got.Service != "api" {
		t.Errorf("expected service 'api', got %q", got.Service)
	}
	if got.Outcome != "healthy" {
		t.Errorf("expected outcome 'healthy', got %q", got.Outcome)
	}
	if got.StatusCode == nil || *got.StatusCode != 200 {
		t.Errorf("expected status 200, got %v", got.StatusCode)
	}
	if got.LatencyMs == nil || *got.LatencyMs != 42 {
		t.Errorf("expected 42ms, got %v", got.LatencyMs)
	}
}

func TestInsertCheck_NoResponseStoresNulls(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.InsertCheck(ctx, makeResult("api", checker.OutcomeUnreachable, 0)); err != nil {
		t.Fatal(err)
	}
	got, err := db.LatestCheck(ctx, "api")
	if err != nil {
		t.Fatal(err)
	}
	if got.StatusCode != nil || got.LatencyMs != nil {
		t.Errorf("expected nil status and latency, got %v / %v", got.StatusCode, got.LatencyMs)
	}
	if got.Error != "connection refused" {
		t.Errorf("expected error detail, got %q", got.Error)
	}
}

func TestLatestCheck_ReturnsNilWhenEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.LatestCheck(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown service, got %+v", got)
	}
}

func TestLatestCheck_ReturnsMostRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r1 := makeResult("api", checker.OutcomeUnreachable, 10)
	r1.CheckedAt = time.Now().Add(-2 * time.Minute).UTC()
	r2 := makeResult("api", checker.OutcomeHealthy, 20)
	r2.CheckedAt = time.Now().Add(-1 * time.Minute).UTC()

	if err := db.InsertCheck(ctx, r1); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertCheck(ctx, r2); err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestCheck(ctx, "api")
	if err != nil {
		t.Fatal(err)
	}
	if got.Outcome != "healthy" {
		t.Errorf("expected latest to be 'healthy', got %q", got.Outcome)
	}
}

func TestServiceHistory_Pagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		r := makeResult("api", checker.OutcomeHealthy, int64(i))
		r.CheckedAt = time.Now().Add(time.Duration(i) * time.Second).UTC()
		if err := db.InsertCheck(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	checks, total, err := db.ServiceHistory(ctx, "api", 5, 0)
	if err != nil {
		t.Fatalf("ServiceHistory: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(checks) != 5 {
		t.Errorf("expected 5 results, got %d", len(checks))
	}
	if *checks[0].LatencyMs != 9 {
		t.Errorf("expected newest check first, got latency %d", *checks[0].LatencyMs)
	}

	checks2, total2, err := db.ServiceHistory(ctx, "api", 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if total2 != 10 {
		t.Errorf("expected total 10 on page 2, got %d", total2)
	}
	if len(checks2) != 5 {
		t.Errorf("expected 5 results on page 2, got %d", len(checks2))
	}
}

func TestServiceHistory_EmptyDB(t *testing.T) {
	db := openTestDB(t)
	checks, total, err := db.ServiceHistory(context.Background(), "api", 10, 0)
	if err != nil {
		t.Fatalf("ServiceHistory: %v", err)
	}
	if total != 0 {
		t.Errorf("expected total 0, got %d", total)
	}
	if len(checks) != 0 {
		t.Errorf("expected 0 results, got %d", len(checks))
	}
}

func TestAllLatest_ReturnsOnePerService(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := makeResult("api", checker.OutcomeHealthy, int64(i))
		r.CheckedAt = time.Now().Add(time.Duration(i) * time.Second).UTC()
		if err := db.InsertCheck(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		r := makeResult("db", checker.OutcomeUnreachable, int64(i))
		r.CheckedAt = time.Now().Add(time.Duration(i) * time.Second).UTC()
		if err := db.InsertCheck(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.AllLatest(ctx)
	if err != nil {
		t.Fatalf("AllLatest: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 services, got %d", len(all))
	}

	byService := make(map[string]storage.Check)
	for _, c := range all {
		byService[c.Service] = c
	}
	if byService["api"].Outcome != "healthy" {
		t.Errorf("expected api outcome 'healthy', got %q", byService["api"].Outcome)
	}
	if byService["db"].Outcome != "unreachable" {
		t.Errorf("expected db outcome 'unreachable', got %q", byService["db"].Outcome)
	}
}

func TestUptimePercent_HalfUp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := db.InsertCheck(ctx, makeResult("api", checker.OutcomeHealthy, 10)); err != nil {
			t.Fatal(err)
		}
		if err := db.InsertCheck(ctx, makeResult("api", checker.OutcomeUnhealthy, 10)); err != nil {
			t.Fatal(err)
		}
	}

	pct, err := db.UptimePercent(ctx, "api", 10)
	if err != nil {
		t.Fatalf("UptimePercent: %v", err)
	}
	if pct != 50.0 {
		t.Errorf("expected 50%%, got %.2f", pct)
	}
}

func TestUptimePercent_EmptyDB(t *testing.T) {
	db := openTestDB(t)
	pct, err := db.UptimePercent(context.Background(), "api", 100)
	if err != nil {
		t.Fatalf("UptimePercent: %v", err)
	}
	if pct != 0.0 {
		t.Errorf("expected 0%%, got %.2f", pct)
	}
}

func TestOutages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := db.InsertOutage(ctx, "api", base, base.Add(90*time.Second)); err != nil {
		t.Fatalf("InsertOutage: %v", err)
	}
	if err := db.InsertOutage(ctx, "web", base, base.Add(5*time.Minute)); err != nil {
		t.Fatalf("InsertOutage: %v", err)
	}

	outages, err := db.RecentOutages(ctx, 10)
	if err != nil {
		t.Fatalf("RecentOutages: %v", err)
	}
	if len(outages) != 2 {
		t.Fatalf("expected 2 outages, got %d", len(outages))
	}
	if outages[0].Service != "web" {
		t.Errorf("expected most recent recovery first, got %q", outages[0].Service)
	}
	if outages[1].DurationMs != 90000 {
		t.Errorf("expected 90000ms, got %d", outages[1].DurationMs)
	}
	if !outages[1].DownSince.Equal(base) {
		t.Errorf("expected down_since %v, got %v", base, outages[1].DownSince)
	}
}

func TestClose(t *testing.T) {
	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
