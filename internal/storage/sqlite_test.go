package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/config"
	"github.com/hazz-dev/healthwatch/internal/scheduler"
	"github.com/hazz-dev/healthwatch/internal/state"
	"github.com/hazz-dev/healthwatch/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeCheck(target string, up bool, responseMs int64) storage.Check {
	c := storage.Check{
		Target:    target,
		URL:       "https://" + target + ".example.com",
		Up:        up,
		CheckedAt: time.Now().UTC(),
	}
	if up {
		code := 200
		c.StatusCode = &code
		c.ResponseMs = &responseMs
	} else {
		c.Error = checker.ReasonTimeout
	}
	return c
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertCheck(context.Background(), makeCheck("api", true, 42)); err != nil {
		t.Fatalf("InsertCheck after Open: %v", err)
	}
}

func TestInsertCheck_And_LatestCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.InsertCheck(ctx, makeCheck("api", true, 42)); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertCheck(ctx, makeCheck("api", false, 0)); err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestCheck(ctx, "api")
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if got == nil {
		t.Fatal("expected a check, got nil")
	}
	if got.Up {
		t.Error("expected latest check to be down")
	}
	if got.ResponseMs != nil || got.StatusCode != nil {
		t.Errorf("expected nullable columns to round-trip as nil, got %v/%v", got.ResponseMs, got.StatusCode)
	}
	if got.Error != checker.ReasonTimeout {
		t.Errorf("expected error %q, got %q", checker.ReasonTimeout, got.Error)
	}
}

func TestLatestCheck_None(t *testing.T) {
	db := openTestDB(t)
	got, err := db.LatestCheck(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestHistory_Pagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := db.InsertCheck(ctx, makeCheck("api", true, int64(i))); err != nil {
			t.Fatal(err)
		}
	}
	db.InsertCheck(ctx, makeCheck("other", true, 1))

	checks, total, err := db.History(ctx, "api", 2, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if *checks[0].ResponseMs != 3 || *checks[1].ResponseMs != 2 {
		t.Errorf("expected newest-first ordering after offset, got %d, %d", *checks[0].ResponseMs, *checks[1].ResponseMs)
	}
}

func TestAllLatest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.InsertCheck(ctx, makeCheck("b", true, 1))
	db.InsertCheck(ctx, makeCheck("a", true, 1))
	db.InsertCheck(ctx, makeCheck("a", false, 0))

	checks, err := db.AllLatest(ctx)
	if err != nil {
		t.Fatalf("AllLatest: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[0].Target != "a" || checks[0].Up {
		t.Errorf("expected latest of a to be down, got %+v", checks[0])
	}
	if checks[1].Target != "b" || !checks[1].Up {
		t.Errorf("expected latest of b to be up, got %+v", checks[1])
	}
}

func TestUptimePercent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.InsertCheck(ctx, makeCheck("api", true, 1))
	db.InsertCheck(ctx, makeCheck("api", true, 1))
	db.InsertCheck(ctx, makeCheck("api", true, 1))
	db.InsertCheck(ctx, makeCheck("api", false, 0))

	pct, err := db.UptimePercent(ctx, "api", 100)
	if err != nil {
		t.Fatal(err)
	}
	if pct != 75 {
		t.Errorf("expected 75%%, got %v", pct)
	}

	pct, err = db.UptimePercent(ctx, "none", 100)
	if err != nil || pct != 0 {
		t.Errorf("expected 0%% for unknown target, got %v (%v)", pct, err)
	}
}

func TestRecordEvent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	target := config.Target{Name: "api", URL: "https://api.example.com"}
	s := state.New([]config.Target{target})
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	res := checker.Result{Target: "api", StatusCode: 503, Responded: true, Latency: 12 * time.Millisecond, Error: "status-503"}
	prev, next, err := s.Apply("api", res, at)
	if err != nil {
		t.Fatal(err)
	}

	ev := scheduler.Event{RoundID: "round-1", Target: target, Result: res, Previous: prev, Current: next}
	if err := db.RecordEvent(ctx, ev); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	got, err := db.LatestCheck(ctx, "api")
	if err != nil || got == nil {
		t.Fatalf("LatestCheck: %v %v", got, err)
	}
	if got.RoundID != "round-1" || got.URL != target.URL {
		t.Errorf("unexpected identity columns: %+v", got)
	}
	if got.Up || got.Error != "status-503" {
		t.Errorf("unexpected outcome: %+v", got)
	}
	if got.StatusCode == nil || *got.StatusCode != 503 {
		t.Errorf("expected status code 503, got %v", got.StatusCode)
	}
	if got.ResponseMs == nil || *got.ResponseMs != 12 {
		t.Errorf("expected response 12ms, got %v", got.ResponseMs)
	}
	if !got.CheckedAt.Equal(at) {
		t.Errorf("expected checked_at %v, got %v", at, got.CheckedAt)
	}
}
