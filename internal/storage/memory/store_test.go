package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/storage"
)

func snapshotAt(t *testing.T, ts time.Time, usdcBRL string) storage.SnapshotRecord {
	t.Helper()
	snap, err := domain.NewRateSnapshot(decimal.RequireFromString(usdcBRL), decimal.RequireFromString("0.92"), ts)
	if err != nil {
		t.Fatal(err)
	}
	return storage.SnapshotRecord{RateSnapshot: snap, Source: "test"}
}

func testAlert() alerting.Alert {
	return alerting.Alert{
		Pair:            domain.PairEURBRL,
		ThresholdType:   alerting.ThresholdAbsolute,
		ThresholdValue:  decimal.NewFromInt(6),
		CooldownMinutes: 60,
		Active:          true,
	}
}

func TestSnapshotsLatestAndRange(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); !errors.Is(err, storage.ErrNoSnapshot) {
		t.Fatalf("empty store should return ErrNoSnapshot, got %v", err)
	}

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, rate := range []string{"5.60", "5.65", "5.70"} {
		if err := s.UpsertSnapshot(ctx, snapshotAt(t, base.Add(time.Duration(i)*time.Hour), rate)); err != nil {
			t.Fatalf("UpsertSnapshot failed: %v", err)
		}
	}
	// replaces the first one
	if err := s.UpsertSnapshot(ctx, snapshotAt(t, base, "5.61")); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.USDCBRL.String() != "5.7" {
		t.Errorf("Expected latest usdc_brl 5.7, got %s", latest.USDCBRL)
	}

	between, _ := s.ListSnapshotsBetween(ctx, base, base.Add(time.Hour))
	if len(between) != 2 || between[0].USDCBRL.String() != "5.61" {
		t.Errorf("unexpected range result: %+v", between)
	}

	recent, _ := s.ListRecentSnapshots(ctx, 2)
	if len(recent) != 2 || !recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Errorf("recent snapshots should be newest first")
	}

	bad := storage.SnapshotRecord{}
	if err := s.UpsertSnapshot(ctx, bad); !errors.Is(err, domain.ErrInvalidRate) {
		t.Errorf("Expected ErrInvalidRate, got %v", err)
	}
}

func TestAlertsInsertAndList(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.InsertAlert(ctx, testAlert())
	if err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	if stored.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}

	inactive := testAlert()
	inactive.Active = false
	if _, err := s.InsertAlert(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	invalid := testAlert()
	invalid.ReferenceType = alerting.ReferenceAvg7d
	if _, err := s.InsertAlert(ctx, invalid); !errors.Is(err, alerting.ErrInvalidAlert) {
		t.Fatalf("Expected ErrInvalidAlert, got %v", err)
	}

	active, _ := s.ListActiveAlerts(ctx)
	if len(active) != 1 || active[0].ID != stored.ID {
		t.Errorf("Expected only the active alert, got %+v", active)
	}
	all, _ := s.ListAlerts(ctx, 10)
	if len(all) != 2 {
		t.Errorf("Expected 2 alerts, got %d", len(all))
	}

	if err := s.SetAlertActive(ctx, uuid.New(), true); !errors.Is(err, storage.ErrAlertNotFound) {
		t.Errorf("Expected ErrAlertNotFound, got %v", err)
	}
}

func TestMarkAlertTriggeredCompareAndSet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	stored, _ := s.InsertAlert(ctx, testAlert())

	first := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ok, err := s.MarkAlertTriggered(ctx, stored.ID, nil, first)
	if err != nil || !ok {
		t.Fatalf("first trigger should apply: ok=%v err=%v", ok, err)
	}

	// stale previous value loses
	ok, _ = s.MarkAlertTriggered(ctx, stored.ID, nil, first.Add(time.Minute))
	if ok {
		t.Fatal("stale compare-and-set should not apply")
	}

	ok, _ = s.MarkAlertTriggered(ctx, stored.ID, &first, first.Add(2*time.Hour))
	if !ok {
		t.Fatal("matching previous should apply")
	}

	got, _ := s.GetAlert(ctx, stored.ID)
	if !got.LastTriggeredAt.Equal(first.Add(2 * time.Hour)) {
		t.Errorf("unexpected last trigger %v", got.LastTriggeredAt)
	}

	_ = s.SetAlertActive(ctx, stored.ID, false)
	prev := first.Add(2 * time.Hour)
	if ok, _ := s.MarkAlertTriggered(ctx, stored.ID, &prev, first.Add(5*time.Hour)); ok {
		t.Error("inactive alerts should not be marked")
	}
}

func TestMarkAlertTriggeredConcurrentSingleWinner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	stored, _ := s.InsertAlert(ctx, testAlert())

	var wins atomic.Int32
	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ok, _ := s.MarkAlertTriggered(ctx, stored.ID, nil, now.Add(time.Duration(i)*time.Second)); ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("Expected exactly one winner, got %d", wins.Load())
	}
}
