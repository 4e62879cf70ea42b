package attendance

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeLedger reproduces the storage semantics in memory: one row per
// (user, day) with an atomic create-or-update on check-in.
type fakeLedger struct {
	mu    sync.Mutex
	rows  map[string]*Record // key: userID + "|" + day
	names map[string]string
	next  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*Record), names: make(map[string]string)}
}

func key(userID string, day time.Time) string {
	return userID + "|" + day.Format("2006-01-02")
}

func (f *fakeLedger) UpsertCheckIn(_ context.Context, userID string, day, at time.Time, confidence float64) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(userID, day)
	if rec, ok := f.rows[k]; ok {
		rec.CheckInAt = at
		rec.Confidence = confidence
		return *rec, nil
	}
	f.next++
	rec := &Record{
		ID:         "rec-" + strconv.Itoa(f.next),
		UserID:     userID,
		Day:        day,
		CheckInAt:  at,
		Confidence: confidence,
		CreatedAt:  at,
	}
	f.rows[k] = rec
	return *rec, nil
}

func (f *fakeLedger) CompleteCheckOut(_ context.Context, userID string, day, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[key(userID, day)]
	if !ok || rec.CheckOutAt != nil {
		return false, nil
	}
	out := at
	rec.CheckOutAt = &out
	return true, nil
}

func (f *fakeLedger) RecordFor(_ context.Context, userID string, day time.Time) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.rows[key(userID, day)]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeLedger) CountActiveUsers(context.Context) (int, error) {
	return len(f.names), nil
}

func (f *fakeLedger) CountRecords(_ context.Context, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.rows {
		if rec.Day.Equal(day) {
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) CountPresent(_ context.Context, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	for _, rec := range f.rows {
		if rec.Day.Equal(day) {
			seen[rec.UserID] = true
		}
	}
	return len(seen), nil
}

func (f *fakeLedger) RecentRecords(_ context.Context, day time.Time, limit int) ([]RecordWithName, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []RecordWithName
	for _, rec := range f.rows {
		if rec.Day.Equal(day) {
			res = append(res, RecordWithName{Record: *rec, Name: f.names[rec.UserID]})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CheckInAt.After(res[j].CheckInAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// newTestService returns a service with a controllable clock.
func newTestService(ledger Ledger, at time.Time) (*Service, *time.Time) {
	now := at
	svc := NewService(ledger)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestCheckIn_RepeatedCallsKeepOneRow(t *testing.T) {
	ledger := newFakeLedger()
	svc, now := newTestService(ledger, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "U", 90); err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	rec, err := svc.CheckIn(ctx, "U", 95)
	if err != nil {
		t.Fatalf("second check-in failed: %v", err)
	}

	if len(ledger.rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(ledger.rows))
	}
	if rec.Confidence != 95 {
		t.Errorf("expected confidence from last call (95), got %f", rec.Confidence)
	}
	if !rec.CheckInAt.Equal(time.Date(2024, 3, 14, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("expected check-in time from last call, got %v", rec.CheckInAt)
	}
}

func TestCheckIn_NewDayNewRow(t *testing.T) {
	ledger := newFakeLedger()
	svc, now := newTestService(ledger, time.Date(2024, 3, 14, 23, 50, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "U", 90); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	*now = now.Add(time.Hour) // crosses UTC midnight
	if _, err := svc.CheckIn(ctx, "U", 90); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	if len(ledger.rows) != 2 {
		t.Errorf("check-ins on different days should create separate rows, got %d", len(ledger.rows))
	}
}

func TestCheckIn_EmptyUser(t *testing.T) {
	svc, _ := newTestService(newFakeLedger(), time.Now())
	if _, err := svc.CheckIn(context.Background(), "", 90); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestCheckOut_FirstWins(t *testing.T) {
	ledger := newFakeLedger()
	svc, now := newTestService(ledger, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "U", 80); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	*now = now.Add(8 * time.Hour)
	done, err := svc.CheckOut(ctx, "U")
	if err != nil || !done {
		t.Fatalf("first check-out should succeed, got done=%v err=%v", done, err)
	}
	firstOut := *now

	*now = now.Add(time.Hour)
	done, err = svc.CheckOut(ctx, "U")
	if err != nil {
		t.Fatalf("repeat check-out errored: %v", err)
	}
	if done {
		t.Error("repeat check-out should be a no-op")
	}

	rec, err := svc.TodayRecord(ctx, "U")
	if err != nil || rec == nil {
		t.Fatalf("TodayRecord failed: rec=%v err=%v", rec, err)
	}
	if rec.CheckOutAt == nil || !rec.CheckOutAt.Equal(firstOut) {
		t.Errorf("stored check-out time should be the first call's, got %v", rec.CheckOutAt)
	}
}

func TestCheckOut_WithoutCheckInIsNoop(t *testing.T) {
	ledger := newFakeLedger()
	svc, _ := newTestService(ledger, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))

	done, err := svc.CheckOut(context.Background(), "U")
	if err != nil {
		t.Fatalf("check-out without record errored: %v", err)
	}
	if done {
		t.Error("check-out without a prior check-in should be a no-op")
	}
	if len(ledger.rows) != 0 {
		t.Errorf("no row should have been created, got %d", len(ledger.rows))
	}
}

func TestCheckIn_AfterCheckOutKeepsCheckOut(t *testing.T) {
	// Re-checking in after a check-out refreshes the check-in time but
	// leaves the existing check-out in place.
	ledger := newFakeLedger()
	svc, now := newTestService(ledger, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "U", 80); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	*now = now.Add(4 * time.Hour)
	if _, err := svc.CheckOut(ctx, "U"); err != nil {
		t.Fatalf("check-out failed: %v", err)
	}
	checkedOut := *now

	*now = now.Add(time.Hour)
	rec, err := svc.CheckIn(ctx, "U", 99)
	if err != nil {
		t.Fatalf("re-check-in failed: %v", err)
	}
	if rec.CheckOutAt == nil || !rec.CheckOutAt.Equal(checkedOut) {
		t.Errorf("re-check-in should not clear check-out, got %v", rec.CheckOutAt)
	}
	if !rec.CheckInAt.Equal(*now) {
		t.Errorf("re-check-in should refresh check-in time, got %v", rec.CheckInAt)
	}
}

func TestStats(t *testing.T) {
	ledger := newFakeLedger()
	ledger.names["a"] = "Alice"
	ledger.names["b"] = "Bob"
	ledger.names["c"] = "Carol"

	svc, now := newTestService(ledger, time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "a", 90); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Hour)
	if _, err := svc.CheckIn(ctx, "b", 85); err != nil {
		t.Fatal(err)
	}
	// Second check-in for a must not bump any count.
	*now = now.Add(time.Hour)
	if _, err := svc.CheckIn(ctx, "a", 95); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Errorf("expected 3 total users, got %d", stats.TotalUsers)
	}
	if stats.PresentToday != 2 {
		t.Errorf("expected 2 present today, got %d", stats.PresentToday)
	}
	if stats.CheckinsToday != 2 {
		t.Errorf("expected 2 check-in rows today, got %d", stats.CheckinsToday)
	}
	if len(stats.RecentCheckins) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(stats.RecentCheckins))
	}
	// a's refreshed check-in is the most recent.
	if stats.RecentCheckins[0].UserID != "a" || stats.RecentCheckins[0].Name != "Alice" {
		t.Errorf("expected most recent record for Alice, got %+v", stats.RecentCheckins[0])
	}
	if stats.RecentCheckins[1].UserID != "b" {
		t.Errorf("expected second record for b, got %+v", stats.RecentCheckins[1])
	}
}
