package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iurijampa/STAMPBLUE-sub002/internal/cache"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
)

// fakeRepo mirrors the storage layer's conditional-write semantics under one
// mutex so racing engine calls observe exactly one winner.
type fakeRepo struct {
	mu            sync.Mutex
	activities    map[string]domain.Activity
	records       map[string][]domain.ProgressRecord
	notifications map[string][]domain.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		activities:    map[string]domain.Activity{},
		records:       map[string][]domain.ProgressRecord{},
		notifications: map[string][]domain.Notification{},
	}
}

// deleteAll drops every stored activity so cached reads are observable.
func (f *fakeRepo) deleteAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = map[string]domain.Activity{}
	f.records = map[string][]domain.ProgressRecord{}
}

func (f *fakeRepo) CreateActivity(_ context.Context, activity domain.Activity, ledger []domain.ProgressRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities[activity.ID] = activity
	f.records[activity.ID] = slices.Clone(ledger)
	return nil
}

func (f *fakeRepo) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	activity, ok := f.activities[id]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	return activity, nil
}

func (f *fakeRepo) DeleteActivity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.activities[id]; !ok {
		return ErrNotFound
	}
	delete(f.activities, id)
	delete(f.records, id)
	for userID, feed := range f.notifications {
		kept := feed[:0]
		for _, n := range feed {
			if n.ActivityID != id {
				kept = append(kept, n)
			}
		}
		f.notifications[userID] = kept
	}
	return nil
}

func (f *fakeRepo) ListProgress(_ context.Context, activityID string) ([]domain.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, ok := f.records[activityID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(records), nil
}

func (f *fakeRepo) CompleteProgress(_ context.Context, activityID string, department domain.Department, tr domain.Transition, finalize bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, ok := f.records[activityID]
	if !ok {
		return ErrNotFound
	}
	active, ok := domain.ActiveRecord(records)
	if !ok || active.Department != department {
		return ErrDepartmentNotActive
	}
	for i, r := range records {
		if r.Department == department {
			records[i] = r.Apply(tr)
		}
	}
	if finalize {
		activity := f.activities[activityID]
		activity.Complete(tr.At)
		f.activities[activityID] = activity
	}
	return nil
}

func (f *fakeRepo) ReturnProgress(_ context.Context, activityID string, current, previous domain.Department, returned, reopened domain.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, ok := f.records[activityID]
	if !ok {
		return ErrNotFound
	}
	active, ok := domain.ActiveRecord(records)
	if !ok || active.Department != current {
		return ErrDepartmentNotActive
	}
	currentIdx, previousIdx := -1, -1
	for i, r := range records {
		switch r.Department {
		case current:
			currentIdx = i
		case previous:
			previousIdx = i
		}
	}
	if previousIdx < 0 || records[previousIdx].Status != domain.ProgressCompleted {
		return ErrPreviousNotCompleted
	}
	records[currentIdx] = records[currentIdx].Apply(returned)
	records[previousIdx] = records[previousIdx].Apply(reopened)
	return nil
}

func (f *fakeRepo) ListActiveForDepartment(_ context.Context, department domain.Department) ([]domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Activity{}
	for id, activity := range f.activities {
		if activity.Status == domain.ActivityCompleted {
			continue
		}
		active, ok := domain.ActiveRecord(f.records[id])
		if ok && active.Department == department {
			out = append(out, activity)
		}
	}
	slices.SortFunc(out, func(a, b domain.Activity) int {
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return a.CreatedAt.Compare(b.CreatedAt)
		case a.Deadline == nil:
			return 1
		case b.Deadline == nil:
			return -1
		default:
			return a.Deadline.Compare(*b.Deadline)
		}
	})
	return out, nil
}

func (f *fakeRepo) ListCompletedForDepartment(_ context.Context, department domain.Department) ([]HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []HistoryEntry{}
	for id, records := range f.records {
		for _, r := range records {
			if r.Department == department && r.Status == domain.ProgressCompleted {
				out = append(out, HistoryEntry{Activity: f.activities[id], Progress: r})
			}
		}
	}
	slices.SortFunc(out, func(a, b HistoryEntry) int {
		return b.Progress.UpdatedAt.Compare(a.Progress.UpdatedAt)
	})
	return out, nil
}

func (f *fakeRepo) CountActivities(_ context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, completed := 0, 0
	for _, activity := range f.activities {
		total++
		if activity.Status == domain.ActivityCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (f *fakeRepo) CountActiveByDepartment(_ context.Context) (map[domain.Department]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[domain.Department]int{}
	for id, activity := range f.activities {
		if activity.Status == domain.ActivityCompleted {
			continue
		}
		if active, ok := domain.ActiveRecord(f.records[id]); ok {
			out[active.Department]++
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateNotifications(_ context.Context, notifications []domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range notifications {
		f.notifications[n.UserID] = append(f.notifications[n.UserID], n)
	}
	return nil
}

func (f *fakeRepo) ListNotificationsForUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed := slices.Clone(f.notifications[userID])
	slices.SortFunc(feed, func(a, b domain.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

func (f *fakeRepo) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications[userID] {
		if n.ID == notificationID {
			f.notifications[userID][i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

type fakeDirectory struct {
	users map[string]domain.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]domain.User{}}
}

func (f *fakeDirectory) CreateUser(_ context.Context, user domain.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (f *fakeDirectory) ListUsersByDepartment(_ context.Context, department domain.Department) ([]domain.User, error) {
	out := []domain.User{}
	for _, user := range f.users {
		if user.Department == department {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListAdmins(_ context.Context) ([]domain.User, error) {
	out := []domain.User{}
	for _, user := range f.users {
		if user.Role == domain.RoleAdmin {
			out = append(out, user)
		}
	}
	return out, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestEngine(t *testing.T) (*Engine, *fakeRepo, *fakeDirectory) {
	t.Helper()
	seq, err := domain.NewSequence([]string{"gabarito", "impressao", "batida"})
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	repo := newFakeRepo()
	dir := newFakeDirectory()
	clock := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	n := 0
	var mu sync.Mutex
	idGen := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
	engine := NewEngine(repo, dir, cache.New(clock.Now), seq, idGen, clock.Now, TTLConfig{})
	return engine, repo, dir
}

func seedUsers(t *testing.T, dir *fakeDirectory) {
	t.Helper()
	now := time.Now()
	fixtures := []struct {
		id, name string
		dept     domain.Department
		role     domain.Role
	}{
		{"u-gab", "Ana", "gabarito", domain.RoleOperator},
		{"u-imp", "Bia", "impressao", domain.RoleOperator},
		{"u-bat", "Caio", "batida", domain.RoleOperator},
		{"u-adm", "Dona", "", domain.RoleAdmin},
	}
	for _, fx := range fixtures {
		user, err := domain.NewUser(fx.id, fx.name, fx.dept, fx.role, now)
		if err != nil {
			t.Fatalf("NewUser(%s) error = %v", fx.id, err)
		}
		dir.users[user.ID] = user
	}
}

func createActivity(t *testing.T, engine *Engine) domain.Activity {
	t.Helper()
	activity, err := engine.CreateActivity(context.Background(), CreateActivityInput{
		Title:    "Camisas ACME",
		Quantity: 40,
		Client:   "ACME",
	})
	if err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	return activity
}

func TestEngine_DefaultedDependencies(t *testing.T) {
	seq, err := domain.NewSequence([]string{"gabarito", "impressao", "batida"})
	if err != nil {
		t.Fatalf("NewSequence() error = %v", err)
	}
	repo := newFakeRepo()
	dir := newFakeDirectory()
	testNow := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	var clock Clock = testNow.Now

	// Nil cache, id generator, and TTLs all fall back to working defaults;
	// the engine must build its own cache from the typed clock.
	engine := NewEngine(repo, dir, nil, seq, nil, clock, TTLConfig{})
	ctx := context.Background()

	activity, err := engine.CreateActivity(ctx, CreateActivityInput{
		Title:    "Camisas ACME",
		Quantity: 40,
		Client:   "ACME",
	})
	if err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	if activity.ID == "" {
		t.Fatal("defaulted id generator produced an empty id")
	}

	// The internally built cache serves repeated reads.
	first, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("gabarito list = %+v", first)
	}
	repo.deleteAll()
	cached, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("expected cached gabarito list, got %+v", cached)
	}
}

func TestEngine_CreateActivity_LedgerAndNotification(t *testing.T) {
	engine, repo, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()

	activity := createActivity(t, engine)

	records, err := repo.ListProgress(ctx, activity.ID)
	if err != nil {
		t.Fatalf("ListProgress() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 progress records, got %d", len(records))
	}
	active, ok := domain.ActiveRecord(records)
	if !ok || active.Department != "gabarito" {
		t.Fatalf("active = %q, %v", active.Department, ok)
	}

	feed, err := engine.ListNotifications(ctx, "u-gab")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("gabarito operator should have 1 notification, got %d", len(feed))
	}
}

func TestEngine_Advance_MovesActivePointer(t *testing.T) {
	engine, repo, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	record, err := engine.Advance(ctx, activity.ID, "gabarito", "Ana", "")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if record.Status != domain.ProgressCompleted || record.CompletedBy() != "Ana" {
		t.Fatalf("advanced record = %+v", record)
	}

	records, _ := repo.ListProgress(ctx, activity.ID)
	active, ok := domain.ActiveRecord(records)
	if !ok || active.Department != "impressao" {
		t.Fatalf("active after advance = %q, %v", active.Department, ok)
	}

	feed, err := engine.ListNotifications(ctx, "u-imp")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("impressao operator should have 1 notification, got %d", len(feed))
	}
}

func TestEngine_Advance_NonActiveDepartmentConflicts(t *testing.T) {
	engine, repo, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	if _, err := engine.Advance(ctx, activity.ID, "batida", "Caio", ""); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Advance(non-active) error = %v, want state conflict", err)
	}

	// No mutation happened.
	records, _ := repo.ListProgress(ctx, activity.ID)
	for _, r := range records {
		if r.Status != domain.ProgressPending || len(r.Transitions) != 0 {
			t.Fatalf("record mutated: %+v", r)
		}
	}
}

func TestEngine_Advance_ValidationErrors(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	if _, err := engine.Advance(ctx, activity.ID, "gabarito", "   ", ""); !errors.Is(err, domain.ErrEmptyActor) {
		t.Fatalf("blank actor error = %v", err)
	}
	if _, err := engine.Advance(ctx, activity.ID, "serigrafia", "Ana", ""); !errors.Is(err, domain.ErrUnknownDepartment) {
		t.Fatalf("unknown department error = %v", err)
	}
	if _, err := engine.Advance(ctx, "missing", "gabarito", "Ana", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing activity error = %v", err)
	}
}

func TestEngine_ConcurrentDoubleAdvance_OneWinner(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	results := make(chan error, 2)
	var start sync.WaitGroup
	start.Add(1)
	for range 2 {
		go func() {
			start.Wait()
			_, err := engine.Advance(ctx, activity.ID, "gabarito", "Maria", "")
			results <- err
		}()
	}
	start.Done()

	var successes, conflicts int
	for range 2 {
		switch err := <-results; {
		case err == nil:
			successes++
		case errors.Is(err, ErrStateConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("successes = %d, conflicts = %d; want exactly one of each", successes, conflicts)
	}
}

func TestEngine_CacheMissAfterAdvance(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	// Warm both department list caches.
	before, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(before) != 1 || before[0].ID != activity.ID {
		t.Fatalf("gabarito list before advance = %+v", before)
	}
	if _, err := engine.ListActiveForDepartment(ctx, "impressao"); err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}

	if _, err := engine.Advance(ctx, activity.ID, "gabarito", "Maria", ""); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	after, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("gabarito list should exclude advanced activity, got %+v", after)
	}
	next, err := engine.ListActiveForDepartment(ctx, "impressao")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(next) != 1 || next[0].ID != activity.ID {
		t.Fatalf("impressao list should include advanced activity, got %+v", next)
	}
}

func TestEngine_Revert_FirstDepartmentConflicts(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	if _, err := engine.Revert(ctx, activity.ID, "gabarito", "Ana", "errado"); !errors.Is(err, ErrNoPreviousDepartment) {
		t.Fatalf("Revert(first) error = %v, want ErrNoPreviousDepartment", err)
	}
}

func TestEngine_WorkflowScenario(t *testing.T) {
	engine, repo, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	if _, err := engine.Advance(ctx, activity.ID, "gabarito", "Ana", ""); err != nil {
		t.Fatalf("Advance(gabarito) error = %v", err)
	}
	if _, err := engine.Advance(ctx, activity.ID, "impressao", "Bia", ""); err != nil {
		t.Fatalf("Advance(impressao) error = %v", err)
	}

	records, _ := repo.ListProgress(ctx, activity.ID)
	active, _ := domain.ActiveRecord(records)
	if active.Department != "batida" {
		t.Fatalf("active = %q, want batida", active.Department)
	}

	if _, err := engine.Revert(ctx, activity.ID, "batida", "Caio", "peça rasgada"); err != nil {
		t.Fatalf("Revert(batida) error = %v", err)
	}

	records, _ = repo.ListProgress(ctx, activity.ID)
	active, _ = domain.ActiveRecord(records)
	if active.Department != "impressao" {
		t.Fatalf("active after revert = %q, want impressao", active.Department)
	}
	var impressao, batida domain.ProgressRecord
	for _, r := range records {
		switch r.Department {
		case "impressao":
			impressao = r
		case "batida":
			batida = r
		}
	}
	if impressao.Status != domain.ProgressPending || impressao.CompletedBy() != "" {
		t.Fatalf("impressao after revert = %+v", impressao)
	}
	if !batida.Returned() || batida.ReturnedBy() != "Caio" {
		t.Fatalf("batida after revert = %+v", batida)
	}
	feed, _ := engine.ListNotifications(ctx, "u-imp")
	found := false
	for _, n := range feed {
		if n.ActivityID == activity.ID && n.Read == false && containsAll(n.Message, "returned", "peça rasgada") {
			found = true
		}
	}
	if !found {
		t.Fatalf("impressao feed missing return justification: %+v", feed)
	}

	// Re-advance restores the pre-revert ledger state; the audit entries stay.
	if _, err := engine.Advance(ctx, activity.ID, "impressao", "Bia", ""); err != nil {
		t.Fatalf("re-Advance(impressao) error = %v", err)
	}
	records, _ = repo.ListProgress(ctx, activity.ID)
	active, _ = domain.ActiveRecord(records)
	if active.Department != "batida" {
		t.Fatalf("active after re-advance = %q, want batida", active.Department)
	}
	for _, r := range records {
		if r.Department == "impressao" {
			if r.CompletedBy() != "Bia" {
				t.Fatalf("impressao CompletedBy = %q", r.CompletedBy())
			}
			if len(r.Transitions) != 3 {
				t.Fatalf("impressao audit trail lost: %+v", r.Transitions)
			}
		}
		if r.Department == "batida" && r.Transitions[0].Kind != domain.TransitionReturned {
			t.Fatalf("batida audit trail lost: %+v", r.Transitions)
		}
	}

	// Terminal advance completes the activity.
	if _, err := engine.Advance(ctx, activity.ID, "batida", "Caio", ""); err != nil {
		t.Fatalf("Advance(batida) error = %v", err)
	}
	completed, err := engine.GetActivity(ctx, activity.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if completed.Status != domain.ActivityCompleted {
		t.Fatalf("activity status = %q", completed.Status)
	}
	records, _ = repo.ListProgress(ctx, activity.ID)
	if _, ok := domain.ActiveRecord(records); ok {
		t.Fatal("completed activity should have no active record")
	}
	adminFeed, _ := engine.ListNotifications(ctx, "u-adm")
	if len(adminFeed) == 0 {
		t.Fatal("admin should be notified on terminal advance")
	}

	// No further transitions on a completed activity.
	if _, err := engine.Advance(ctx, activity.ID, "batida", "Caio", ""); !errors.Is(err, ErrActivityCompleted) {
		t.Fatalf("Advance(completed) error = %v", err)
	}
	if _, err := engine.Revert(ctx, activity.ID, "batida", "Caio", ""); !errors.Is(err, ErrActivityCompleted) {
		t.Fatalf("Revert(completed) error = %v", err)
	}
}

func TestEngine_GetStats(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()

	first := createActivity(t, engine)
	createActivity(t, engine)

	if _, err := engine.Advance(ctx, first.ID, "gabarito", "Ana", ""); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	stats, err := engine.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalActivities != 2 || stats.InProgress != 2 || stats.Completed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.ByDepartment) != 3 {
		t.Fatalf("expected a row per department, got %+v", stats.ByDepartment)
	}
	if stats.ByDepartment[0].Active != 1 || stats.ByDepartment[1].Active != 1 || stats.ByDepartment[2].Active != 0 {
		t.Fatalf("per-department actives = %+v", stats.ByDepartment)
	}
}

func TestEngine_MarkNotificationRead(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	createActivity(t, engine)

	feed, err := engine.ListNotifications(ctx, "u-gab")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(feed) != 1 || feed[0].Read {
		t.Fatalf("unexpected feed %+v", feed)
	}

	if err := engine.MarkNotificationRead(ctx, "u-gab", feed[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	feed, err = engine.ListNotifications(ctx, "u-gab")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if !feed[0].Read {
		t.Fatal("notification should be read after marking")
	}

	if err := engine.MarkNotificationRead(ctx, "u-gab", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkNotificationRead(missing) error = %v", err)
	}
}

func TestEngine_DeleteActivity_ClearsCaches(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()
	activity := createActivity(t, engine)

	if _, err := engine.ListActiveForDepartment(ctx, "gabarito"); err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if err := engine.DeleteActivity(ctx, activity.ID); err != nil {
		t.Fatalf("DeleteActivity() error = %v", err)
	}

	list, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted activity still listed: %+v", list)
	}

	if err := engine.DeleteActivity(ctx, activity.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteActivity(missing) error = %v", err)
	}
}

func TestEngine_ListActive_DeadlineOrdering(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	seedUsers(t, dir)
	ctx := context.Background()

	late := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	soon := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	mk := func(title string, deadline *time.Time) domain.Activity {
		activity, err := engine.CreateActivity(ctx, CreateActivityInput{Title: title, Quantity: 1, Deadline: deadline})
		if err != nil {
			t.Fatalf("CreateActivity(%s) error = %v", title, err)
		}
		return activity
	}
	noDeadline := mk("sem prazo", nil)
	lateOne := mk("prazo longe", &late)
	soonOne := mk("prazo perto", &soon)

	list, err := engine.ListActiveForDepartment(ctx, "gabarito")
	if err != nil {
		t.Fatalf("ListActiveForDepartment() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(list))
	}
	if list[0].ID != soonOne.ID || list[1].ID != lateOne.ID || list[2].ID != noDeadline.ID {
		t.Fatalf("deadline ordering wrong: %s, %s, %s", list[0].Title, list[1].Title, list[2].Title)
	}
}

func TestEngine_RegisterUser(t *testing.T) {
	engine, _, dir := newTestEngine(t)
	ctx := context.Background()

	user, err := engine.RegisterUser(ctx, RegisterUserInput{Name: "Maria", Department: "impressao", Role: domain.RoleOperator})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if _, ok := dir.users[user.ID]; !ok {
		t.Fatal("user not persisted")
	}

	if _, err := engine.RegisterUser(ctx, RegisterUserInput{Name: "Zed", Department: "estoque"}); !errors.Is(err, domain.ErrUnknownDepartment) {
		t.Fatalf("unknown department error = %v", err)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
