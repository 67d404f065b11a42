package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"habits/internal/adapter/memory"
	"habits/internal/app"
	"habits/internal/domain"
)

func newAnalytics(t *testing.T) (*app.Tracker, *app.AnalyticsService) {
	t.Helper()
	db := memory.New()
	return app.NewTracker(db, db, fixedClock(), quietLogger()), app.NewAnalyticsService(db, db, fixedClock())
}

func day(y int, m time.Month, d int) domain.Day { return domain.NewDay(y, m, d) }

func TestWeeklyCompletionSeries(t *testing.T) {
	tr, an := newAnalytics(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Read", 4)

	// Current week starts Monday 2026-02-02.
	for _, d := range []domain.Day{day(2026, 2, 2), day(2026, 2, 3), day(2026, 2, 4), day(2026, 1, 27)} {
		mustToggle(t, tr, h.ID, d)
	}

	got, err := an.WeeklyCompletionSeries(ctx, userID, h.ID, 3)
	if err != nil {
		t.Fatalf("WeeklyCompletionSeries: %v", err)
	}
	want := []app.WeekRate{
		{Week: "Jan 19", Start: day(2026, 1, 19), Rate: 0},
		{Week: "Jan 26", Start: day(2026, 1, 26), Rate: 25},
		{Week: "Feb 02", Start: day(2026, 2, 2), Rate: 75},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d weeks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("week %d = %+v; want %+v", i, got[i], want[i])
		}
	}
}

func TestWeeklyCompletionSeries_Bounds(t *testing.T) {
	tr, an := newAnalytics(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Stretch", 2)
	for off := 0; off < 7; off++ {
		mustToggle(t, tr, h.ID, day(2026, 2, 2).AddDays(off))
	}

	tests := []struct {
		name      string
		weeks     int
		wantWeeks int
	}{
		{"default", 0, app.DefaultWeekCount},
		{"negative", -3, app.DefaultWeekCount},
		{"explicit", 4, 4},
		{"capped", 500, app.MaxWeekCount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := an.WeeklyCompletionSeries(ctx, userID, h.ID, tc.weeks)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tc.wantWeeks {
				t.Fatalf("expected %d weeks, got %d", tc.wantWeeks, len(got))
			}
			for _, w := range got {
				if w.Rate < 0 || w.Rate > 100 {
					t.Errorf("rate %d out of range", w.Rate)
				}
			}
			if last := got[len(got)-1]; last.Rate != 100 {
				t.Errorf("expected 7/2 to clamp to 100, got %d", last.Rate)
			}
		})
	}
}

func TestWeeklyCompletionSeries_Rounding(t *testing.T) {
	tr, an := newAnalytics(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Journal", 3)

	mustToggle(t, tr, h.ID, day(2026, 2, 2))
	got, _ := an.WeeklyCompletionSeries(ctx, userID, h.ID, 1)
	if got[0].Rate != 33 {
		t.Errorf("1/3 = %d; want 33", got[0].Rate)
	}

	mustToggle(t, tr, h.ID, day(2026, 2, 8))
	got, _ = an.WeeklyCompletionSeries(ctx, userID, h.ID, 1)
	if got[0].Rate != 67 {
		t.Errorf("2/3 = %d; want 67", got[0].Rate)
	}
}

func TestWeeklyCompletionSeries_UnknownHabit(t *testing.T) {
	_, an := newAnalytics(t)

	_, err := an.WeeklyCompletionSeries(context.Background(), userID, "missing", 4)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestWeekdayHistogram(t *testing.T) {
	tr, an := newAnalytics(t)
	ctx := context.Background()
	a := mustCreate(t, tr, "A", 7)
	b := mustCreate(t, tr, "B", 7)

	mustToggle(t, tr, a.ID, day(2026, 2, 2))  // Mon
	mustToggle(t, tr, b.ID, day(2026, 2, 2))  // Mon
	mustToggle(t, tr, a.ID, day(2026, 2, 8))  // Sun
	mustToggle(t, tr, b.ID, day(2026, 1, 28)) // Wed

	got, err := an.WeekdayHistogram(ctx, userID)
	if err != nil {
		t.Fatalf("WeekdayHistogram: %v", err)
	}
	want := []app.WeekdayCount{
		{Day: "Mon", Completed: 2},
		{Day: "Tue", Completed: 0},
		{Day: "Wed", Completed: 1},
		{Day: "Thu", Completed: 0},
		{Day: "Fri", Completed: 0},
		{Day: "Sat", Completed: 0},
		{Day: "Sun", Completed: 1},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %+v; want %+v", i, got[i], want[i])
		}
	}

	// Deleting a habit drops its checks from every view.
	if err := tr.DeleteHabit(ctx, userID, b.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = an.WeekdayHistogram(ctx, userID)
	if got[0].Completed != 1 || got[2].Completed != 0 {
		t.Errorf("expected B's checks to be gone, got %+v", got)
	}
}

func TestWeekdayHistogram_Empty(t *testing.T) {
	_, an := newAnalytics(t)

	got, err := an.WeekdayHistogram(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(got))
	}
	for _, b := range got {
		if b.Completed != 0 {
			t.Errorf("expected zero count, got %+v", b)
		}
	}
}

func TestSnapshot(t *testing.T) {
	tr, an := newAnalytics(t)
	ctx := context.Background()
	a := mustCreate(t, tr, "A", 7)
	b := mustCreate(t, tr, "B", 1)
	mustToggle(t, tr, a.ID, day(2026, 2, 8))
	mustToggle(t, tr, b.ID, day(2026, 2, 7))

	snap, err := an.Snapshot(ctx, userID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.CompletionRates) != 2 {
		t.Fatalf("expected 2 series, got %d", len(snap.CompletionRates))
	}
	for _, s := range snap.CompletionRates {
		if len(s.Data) != app.DefaultWeekCount {
			t.Errorf("%s: expected %d weeks, got %d", s.HabitName, app.DefaultWeekCount, len(s.Data))
		}
	}
	if got := snap.CompletionRates[0].Data[app.DefaultWeekCount-1].Rate; got != 14 {
		t.Errorf("A current week = %d; want 14", got)
	}
	if got := snap.CompletionRates[1].Data[app.DefaultWeekCount-1].Rate; got != 100 {
		t.Errorf("B current week = %d; want 100", got)
	}
	if snap.WeeklyStats[5].Completed != 1 || snap.WeeklyStats[6].Completed != 1 {
		t.Errorf("unexpected weekday stats %+v", snap.WeeklyStats)
	}
}

type failingCheckRepo struct {
	*memory.DB
	err error
}

func (r *failingCheckRepo) ListAllChecks(ctx context.Context, userID int64) ([]domain.CheckRecord, error) {
	return nil, r.err
}

func TestSnapshot_PropagatesStorageError(t *testing.T) {
	db := memory.New()
	boom := errors.New("connection reset")
	an := app.NewAnalyticsService(db, &failingCheckRepo{DB: db, err: boom}, fixedClock())

	_, err := an.Snapshot(context.Background(), userID)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}
