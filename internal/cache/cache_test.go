package cache

import (
	"errors"
	"testing"
	"time"
)

// fakeClock gives tests explicit control over entry expiry.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func TestCache_GetSetExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(clock.Now)

	scope := DepartmentList("gabarito")
	c.Set(scope, []string{"a1"}, 5*time.Second)

	got, ok := c.Get(scope)
	if !ok {
		t.Fatal("expected hit before expiry")
	}
	if values := got.([]string); len(values) != 1 || values[0] != "a1" {
		t.Fatalf("unexpected cached value %#v", got)
	}

	clock.Advance(5 * time.Second)
	if _, ok := c.Get(scope); ok {
		t.Fatal("expected miss at expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed, len = %d", c.Len())
	}
}

func TestCache_InvalidateScopes(t *testing.T) {
	clock := newFakeClock()
	c := New(clock.Now)

	c.Set(DepartmentList("gabarito"), 1, time.Minute)
	c.Set(DepartmentList("impressao"), 2, time.Minute)
	c.Set(Stats(), 3, time.Minute)

	c.Invalidate(DepartmentList("gabarito"), Stats())

	if _, ok := c.Get(DepartmentList("gabarito")); ok {
		t.Fatal("gabarito list should be evicted")
	}
	if _, ok := c.Get(Stats()); ok {
		t.Fatal("stats should be evicted")
	}
	if _, ok := c.Get(DepartmentList("impressao")); !ok {
		t.Fatal("impressao list should survive")
	}

	// Evicting an absent scope is a no-op.
	c.Invalidate(UserNotifications("u1"))
}

func TestQuery_ComputesOnceUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(clock.Now)
	scope := DepartmentHistory("batida")

	calls := 0
	compute := func() ([]int, error) {
		calls++
		return []int{calls}, nil
	}

	first, err := Query(c, scope, 10*time.Second, compute)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	second, err := Query(c, scope, 10*time.Second, compute)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
	if first[0] != second[0] {
		t.Fatalf("cached value mismatch: %v vs %v", first, second)
	}

	clock.Advance(11 * time.Second)
	if _, err := Query(c, scope, 10*time.Second, compute); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("compute called %d times after expiry, want 2", calls)
	}
}

func TestQuery_FailingComputeNeverPopulates(t *testing.T) {
	clock := newFakeClock()
	c := New(clock.Now)
	scope := Stats()

	wantErr := errors.New("store down")
	if _, err := Query(c, scope, time.Minute, func() (int, error) {
		return 0, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("Query() error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get(scope); ok {
		t.Fatal("failed compute must not populate the cache")
	}

	got, err := Query(c, scope, time.Minute, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("Query() = %d, want 42", got)
	}
}

func TestScopeKeys(t *testing.T) {
	if k := DepartmentList("gabarito").Key(); k != "activities_by_dept_gabarito" {
		t.Fatalf("DepartmentList key = %q", k)
	}
	if k := DepartmentHistory("batida").Key(); k != "completed_by_dept_batida" {
		t.Fatalf("DepartmentHistory key = %q", k)
	}
	if k := Stats().Key(); k != "activity_stats" {
		t.Fatalf("Stats key = %q", k)
	}
	if k := UserNotifications("u9").Key(); k != "user_notifications_u9" {
		t.Fatalf("UserNotifications key = %q", k)
	}
}
