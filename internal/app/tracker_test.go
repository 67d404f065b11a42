package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"habits/internal/adapter/memory"
	"habits/internal/app"
	"habits/internal/domain"
)

const userID = int64(1)

// Sunday 2026-02-08, 10:00 UTC.
var fixedNow = time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)

func fixedClock() app.Clock {
	return app.Clock{Now: func() time.Time { return fixedNow }, Location: time.UTC}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTracker(t *testing.T) (*app.Tracker, *memory.DB) {
	t.Helper()
	db := memory.New()
	return app.NewTracker(db, db, fixedClock(), quietLogger()), db
}

func mustCreate(t *testing.T, tr *app.Tracker, name string, goal int) domain.Habit {
	t.Helper()
	h, err := tr.CreateHabit(context.Background(), userID, domain.HabitInput{Name: name, Emoji: "✅", Goal: goal, Color: "blue"})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	return h
}

func mustToggle(t *testing.T, tr *app.Tracker, habitID string, day domain.Day) app.ToggleResult {
	t.Helper()
	res, err := tr.ToggleCheck(context.Background(), userID, habitID, day)
	if err != nil {
		t.Fatalf("ToggleCheck(%s): %v", day, err)
	}
	return res
}

func today() domain.Day { return domain.DayOf(fixedNow) }

func TestCreateHabit_Validation(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   domain.HabitInput
	}{
		{"empty name", domain.HabitInput{Name: "", Goal: 3}},
		{"blank name", domain.HabitInput{Name: "   ", Goal: 3}},
		{"goal too small", domain.HabitInput{Name: "Run", Goal: 0}},
		{"goal too large", domain.HabitInput{Name: "Run", Goal: 8}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.CreateHabit(ctx, userID, tc.in)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			hs, _ := tr.ListHabits(ctx, userID)
			if len(hs) != 0 {
				t.Fatalf("expected no habits after failed create, got %d", len(hs))
			}
		})
	}
}

func TestCreateHabit_Success(t *testing.T) {
	tr, _ := newTracker(t)

	h, err := tr.CreateHabit(context.Background(), userID, domain.HabitInput{Name: "  Read  ", Emoji: "📚", Goal: 7, Color: "gradient-primary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID == "" {
		t.Error("expected an id")
	}
	if h.Name != "Read" {
		t.Errorf("expected trimmed name, got %q", h.Name)
	}
	if h.CurrentStreak != 0 || h.LongestStreak != 0 || len(h.Badges) != 0 {
		t.Errorf("expected zeroed progress, got %+v", h)
	}
	if !h.CreatedAt.Equal(fixedNow) {
		t.Errorf("expected createdAt %v, got %v", fixedNow, h.CreatedAt)
	}

	other := mustCreate(t, tr, "Walk", 3)
	if other.ID == h.ID {
		t.Error("expected unique ids")
	}
	hs, _ := tr.ListHabits(context.Background(), userID)
	if len(hs) != 2 || hs[0].ID != h.ID || hs[1].ID != other.ID {
		t.Errorf("expected insertion order, got %+v", hs)
	}
}

func TestUpdateHabit(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Run", 3)
	mustToggle(t, tr, h.ID, today())

	name := "Run far"
	goal := 6
	got, err := tr.UpdateHabit(ctx, userID, h.ID, domain.HabitPatch{Name: &name, Goal: &goal})
	if err != nil {
		t.Fatalf("UpdateHabit: %v", err)
	}
	if got.Name != "Run far" || got.Goal != 6 || got.Emoji != "✅" {
		t.Errorf("unexpected merge result: %+v", got)
	}
	if got.CurrentStreak != 1 || len(got.Badges) != 1 {
		t.Errorf("update must keep derived fields, got %+v", got)
	}

	bad := 9
	if _, err := tr.UpdateHabit(ctx, userID, h.ID, domain.HabitPatch{Goal: &bad}); err == nil {
		t.Fatal("expected validation error")
	}
	stored, _ := tr.GetHabit(ctx, userID, h.ID)
	if stored.Goal != 6 {
		t.Errorf("failed update changed state: goal=%d", stored.Goal)
	}

	_, err = tr.UpdateHabit(ctx, userID, "missing", domain.HabitPatch{Name: &name})
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteHabit_CascadesAndIsIdempotent(t *testing.T) {
	tr, db := newTracker(t)
	ctx := context.Background()
	a := mustCreate(t, tr, "A", 7)
	b := mustCreate(t, tr, "B", 7)
	mustToggle(t, tr, a.ID, today())
	mustToggle(t, tr, a.ID, today().AddDays(-1))
	mustToggle(t, tr, b.ID, today())

	if err := tr.DeleteHabit(ctx, userID, a.ID); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}
	all, _ := db.ListAllChecks(ctx, userID)
	if len(all) != 1 || all[0].HabitID != b.ID {
		t.Fatalf("expected only B's check to survive, got %+v", all)
	}
	if err := tr.DeleteHabit(ctx, userID, a.ID); err != nil {
		t.Fatalf("deleting a missing habit should be a no-op, got %v", err)
	}
	if err := tr.DeleteHabit(ctx, userID, "never-existed"); err != nil {
		t.Fatalf("deleting an unknown habit should be a no-op, got %v", err)
	}
}

func TestToggleCheck_AlternatesLedgerState(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Read", 7)
	day := today().AddDays(-3)

	for i := 1; i <= 6; i++ {
		res := mustToggle(t, tr, h.ID, day)
		wantChecked := i%2 == 1
		if res.Checked != wantChecked {
			t.Fatalf("toggle %d: checked=%v; want %v", i, res.Checked, wantChecked)
		}
		checked, _ := tr.IsChecked(ctx, userID, h.ID, day)
		if checked != wantChecked {
			t.Fatalf("toggle %d: ledger checked=%v; want %v", i, checked, wantChecked)
		}
	}
	cs, _ := tr.ListChecks(ctx, userID, h.ID)
	if len(cs) != 0 {
		t.Errorf("expected empty ledger after even toggles, got %d", len(cs))
	}
}

func TestToggleCheck_TwiceInARow(t *testing.T) {
	tr, _ := newTracker(t)
	h := mustCreate(t, tr, "Read", 7)

	first := mustToggle(t, tr, h.ID, today())
	if len(first.Badges) != 1 || first.Badges[0].Name != "First Steps" {
		t.Fatalf("expected First Steps on first check, got %+v", first.Badges)
	}
	second := mustToggle(t, tr, h.ID, today())
	if second.Badges == nil || len(second.Badges) != 0 {
		t.Errorf("expected empty non-nil badges on removal, got %#v", second.Badges)
	}
	cs, _ := tr.ListChecks(context.Background(), userID, h.ID)
	if len(cs) != 0 {
		t.Errorf("expected no records for the day, got %d", len(cs))
	}
}

func TestToggleCheck_TodayAndYesterday(t *testing.T) {
	tr, _ := newTracker(t)
	h := mustCreate(t, tr, "Exercise", 5)

	mustToggle(t, tr, h.ID, today().AddDays(-1))
	mustToggle(t, tr, h.ID, today())

	got, _ := tr.GetHabit(context.Background(), userID, h.ID)
	if got.CurrentStreak != 2 || got.LongestStreak != 2 {
		t.Errorf("expected 2/2, got current=%d longest=%d", got.CurrentStreak, got.LongestStreak)
	}
}

func TestToggleCheck_BackfilledWeekUnlocksBadgesTogether(t *testing.T) {
	tr, _ := newTracker(t)
	h := mustCreate(t, tr, "Meditate", 7)

	// Days -7..-2 leave both today and yesterday open, so no streak is live yet.
	for off := -7; off <= -2; off++ {
		res := mustToggle(t, tr, h.ID, today().AddDays(off))
		if len(res.Badges) != 0 {
			t.Fatalf("unexpected badges at offset %d: %+v", off, res.Badges)
		}
	}

	res := mustToggle(t, tr, h.ID, today().AddDays(-1))
	if len(res.Badges) != 2 {
		t.Fatalf("expected 2 badges, got %+v", res.Badges)
	}
	if res.Badges[0].Milestone != 1 || res.Badges[1].Milestone != 7 {
		t.Errorf("expected ascending milestones 1,7; got %d,%d", res.Badges[0].Milestone, res.Badges[1].Milestone)
	}

	got, _ := tr.GetHabit(context.Background(), userID, h.ID)
	if got.CurrentStreak != 7 || got.LongestStreak != 7 {
		t.Errorf("expected streak 7/7, got %d/%d", got.CurrentStreak, got.LongestStreak)
	}
	if len(got.Badges) != 2 {
		t.Errorf("expected 2 stored badges, got %d", len(got.Badges))
	}
}

func TestToggleCheck_UncheckLeavesStreakStale(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Read", 7)

	mustToggle(t, tr, h.ID, today().AddDays(-1))
	mustToggle(t, tr, h.ID, today())
	mustToggle(t, tr, h.ID, today()) // uncheck

	got, _ := tr.GetHabit(ctx, userID, h.ID)
	if got.CurrentStreak != 2 {
		t.Errorf("expected cached streak to stay at 2, got %d", got.CurrentStreak)
	}
	if len(got.Badges) != 1 {
		t.Errorf("expected badge to be kept, got %d", len(got.Badges))
	}

	fresh, err := tr.Streaks(ctx, userID, h.ID)
	if err != nil {
		t.Fatalf("Streaks: %v", err)
	}
	if fresh.Current != 1 || fresh.Longest != 1 {
		t.Errorf("expected recomputed 1/1, got %+v", fresh)
	}
}

func TestToggleCheck_UnknownHabit(t *testing.T) {
	tr, _ := newTracker(t)

	_, err := tr.ToggleCheck(context.Background(), userID, "nope", today())
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestToggleCheck_OtherUsersHabitIsNotFound(t *testing.T) {
	tr, _ := newTracker(t)
	h := mustCreate(t, tr, "Private", 3)

	_, err := tr.ToggleCheck(context.Background(), 99, h.ID, today())
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for foreign user, got %v", err)
	}
}

func TestToggleCheck_RandomSequencesKeepInvariants(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Fuzz", 4)
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 300; i++ {
		day := today().AddDays(-rng.IntN(40))
		res := mustToggle(t, tr, h.ID, day)

		got, _ := tr.GetHabit(ctx, userID, h.ID)
		if res.Checked && got.LongestStreak < got.CurrentStreak {
			t.Fatalf("step %d: longest %d < current %d", i, got.LongestStreak, got.CurrentStreak)
		}
		seen := map[int]bool{}
		for _, b := range got.Badges {
			if seen[b.Milestone] {
				t.Fatalf("step %d: duplicate milestone %d", i, b.Milestone)
			}
			seen[b.Milestone] = true
		}
		for _, b := range res.Badges {
			if b.Milestone > got.CurrentStreak {
				t.Fatalf("step %d: badge %d above streak %d", i, b.Milestone, got.CurrentStreak)
			}
		}
	}
}

type failingHabitRepo struct {
	*memory.DB
	saveErr error
}

func (r *failingHabitRepo) SaveHabit(ctx context.Context, h domain.Habit) error {
	return r.saveErr
}

func TestToggleCheck_SaveFailureRemovesCheck(t *testing.T) {
	db := memory.New()
	repo := &failingHabitRepo{DB: db, saveErr: errors.New("disk full")}
	tr := app.NewTracker(repo, db, fixedClock(), quietLogger())
	ctx := context.Background()

	h, err := tr.CreateHabit(ctx, userID, domain.HabitInput{Name: "Run", Goal: 3})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	if _, err := tr.ToggleCheck(ctx, userID, h.ID, today()); err == nil {
		t.Fatal("expected save error")
	}
	if c, _ := db.GetCheck(ctx, userID, h.ID, today()); c != nil {
		t.Error("expected the inserted check to be rolled back")
	}
}

func TestToggleCheck_ConcurrentTogglesAwardOnce(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	h := mustCreate(t, tr, "Busy", 7)

	var wg sync.WaitGroup
	for off := 0; off < 10; off++ {
		wg.Add(1)
		go func(off int) {
			defer wg.Done()
			if _, err := tr.ToggleCheck(ctx, userID, h.ID, today().AddDays(-off)); err != nil {
				t.Errorf("ToggleCheck: %v", err)
			}
		}(off)
	}
	wg.Wait()

	got, _ := tr.GetHabit(ctx, userID, h.ID)
	seen := map[int]bool{}
	for _, b := range got.Badges {
		if seen[b.Milestone] {
			t.Fatalf("duplicate badge milestone %d", b.Milestone)
		}
		seen[b.Milestone] = true
	}
	cs, _ := tr.ListChecks(ctx, userID, h.ID)
	if len(cs) != 10 {
		t.Errorf("expected 10 checks, got %d", len(cs))
	}
}

func TestSubscribe(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []app.EventType
	cancel := tr.Subscribe(func(ev app.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.UserID != userID {
			t.Errorf("unexpected user %d", ev.UserID)
		}
		got = append(got, ev.Type)
	})

	h := mustCreate(t, tr, "Read", 7)
	mustToggle(t, tr, h.ID, today())
	if err := tr.DeleteHabit(ctx, userID, h.ID); err != nil {
		t.Fatal(err)
	}
	cancel()
	mustCreate(t, tr, "Ignored", 7)

	want := []app.EventType{app.EventHabitCreated, app.EventCheckToggled, app.EventBadgesUnlocked, app.EventHabitDeleted}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v; want %v", got, want)
	}
}

func TestSubscriberMayCallBackIntoTracker(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	done := make(chan int, 1)
	cancel := tr.Subscribe(func(ev app.Event) {
		if ev.Type != app.EventHabitCreated {
			return
		}
		hs, err := tr.ListHabits(ctx, ev.UserID)
		if err != nil {
			t.Errorf("ListHabits: %v", err)
		}
		done <- len(hs)
	})
	defer cancel()

	mustCreate(t, tr, "Read", 7)
	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("expected 1 habit, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber deadlocked")
	}
}
