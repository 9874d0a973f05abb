// Package app hosts the workflow engine: ledger transitions, derived read
// models, cache invalidation, and notification emission.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/cache"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// TTLConfig sets per-read-path cache lifetimes. Department dashboards poll
// frequently, so lists stay seconds-fresh; history tolerates more staleness.
type TTLConfig struct {
	DepartmentList    time.Duration
	DepartmentHistory time.Duration
	Notifications     time.Duration
	Stats             time.Duration
}

// DefaultTTLConfig returns the production cache lifetimes.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		DepartmentList:    5 * time.Second,
		DepartmentHistory: 10 * time.Second,
		Notifications:     2 * time.Second,
		Stats:             5 * time.Second,
	}
}

// notificationFeedLimit bounds one user's feed query.
const notificationFeedLimit = 50

// Engine orchestrates ledger transitions. Each mutating operation is a short
// read-then-conditional-write sequence; serialization per activity happens at
// the storage layer through the conditional write predicate, never through an
// engine-side lock. Invalidation runs synchronously before the call returns.
type Engine struct {
	repo  Repository
	dir   Directory
	cache *cache.Cache
	seq   domain.Sequence
	idGen IDGenerator
	clock Clock
	ttl   TTLConfig
}

// NewEngine wires the engine with an explicit cache instance and the fixed
// process-wide department sequence.
func NewEngine(repo Repository, dir Directory, c *cache.Cache, seq domain.Sequence, idGen IDGenerator, clock Clock, ttl TTLConfig) *Engine {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	if c == nil {
		c = cache.New(cache.Clock(clock))
	}
	zero := TTLConfig{}
	if ttl == zero {
		ttl = DefaultTTLConfig()
	}
	return &Engine{
		repo:  repo,
		dir:   dir,
		cache: c,
		seq:   seq,
		idGen: idGen,
		clock: clock,
		ttl:   ttl,
	}
}

// Sequence exposes the process-wide department order.
func (e *Engine) Sequence() domain.Sequence {
	return e.seq
}

// CreateActivityInput holds the immutable creation attributes of a ticket.
type CreateActivityInput struct {
	Title       string
	Description string
	ImageRef    string
	Quantity    int
	Client      string
	Priority    domain.Priority
	Deadline    *time.Time
}

// CreateActivity persists a new activity together with its eager ledger: one
// pending record per department, the first one active.
func (e *Engine) CreateActivity(ctx context.Context, in CreateActivityInput) (domain.Activity, error) {
	now := e.clock()
	activity, err := domain.NewActivity(domain.ActivityInput{
		ID:          e.idGen(),
		Title:       in.Title,
		Description: in.Description,
		ImageRef:    in.ImageRef,
		Quantity:    in.Quantity,
		Client:      in.Client,
		Priority:    in.Priority,
		Deadline:    in.Deadline,
	}, now)
	if err != nil {
		return domain.Activity{}, err
	}
	ledger, err := domain.NewLedger(activity.ID, e.seq, e.idGen, now)
	if err != nil {
		return domain.Activity{}, err
	}
	if err := e.repo.CreateActivity(ctx, activity, ledger); err != nil {
		return domain.Activity{}, fmt.Errorf("persist activity: %w", err)
	}

	first, _ := e.seq.First()
	e.invalidate(cache.DepartmentList(string(first)), cache.Stats())

	if err := e.notifyDepartment(ctx, first, activity.ID,
		fmt.Sprintf("New activity %q is ready for %s", activity.Title, first)); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// GetActivity returns one activity by id.
func (e *Engine) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return e.repo.GetActivity(ctx, id)
}

// DeleteActivity hard-deletes an activity; progress records and notifications
// cascade. Every department scope is cleared since the activity's position at
// deletion time is not consulted.
func (e *Engine) DeleteActivity(ctx context.Context, id string) error {
	if err := e.repo.DeleteActivity(ctx, id); err != nil {
		return err
	}
	scopes := []cache.Scope{cache.Stats()}
	for _, dept := range e.seq.All() {
		scopes = append(scopes, cache.DepartmentList(string(dept)), cache.DepartmentHistory(string(dept)))
	}
	e.invalidate(scopes...)
	return nil
}

// Advance completes the active department's record and activates the next
// department, or completes the activity when the terminal department signs
// off. The conditional write makes a concurrent duplicate fail with a state
// conflict instead of double-advancing.
func (e *Engine) Advance(ctx context.Context, activityID string, department domain.Department, completedBy, notes string) (domain.ProgressRecord, error) {
	if !e.seq.Contains(department) {
		return domain.ProgressRecord{}, domain.ErrUnknownDepartment
	}
	tr, err := domain.NewTransition(domain.TransitionCompleted, completedBy, notes, e.clock())
	if err != nil {
		return domain.ProgressRecord{}, err
	}

	activity, active, err := e.loadActive(ctx, activityID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	if active.Department != department {
		return domain.ProgressRecord{}, ErrDepartmentNotActive
	}

	next, hasNext := e.seq.Next(department)
	if err := e.repo.CompleteProgress(ctx, activityID, department, tr, !hasNext); err != nil {
		return domain.ProgressRecord{}, err
	}

	scopes := []cache.Scope{cache.DepartmentList(string(department)), cache.DepartmentHistory(string(department)), cache.Stats()}
	if hasNext {
		scopes = append(scopes, cache.DepartmentList(string(next)))
	}
	e.invalidate(scopes...)

	if hasNext {
		err = e.notifyDepartment(ctx, next, activityID,
			fmt.Sprintf("Activity %q arrived from %s", activity.Title, department))
	} else {
		err = e.notifyAdmins(ctx, activityID,
			fmt.Sprintf("Activity %q finished production at %s", activity.Title, department))
	}
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	return active.Apply(tr), nil
}

// Revert moves the active pointer exactly one department back. The current
// department's record keeps a returned entry in its log and stays pending;
// the previous department's record reopens with its completion attribution
// cleared from the derived view but preserved in the audit trail.
func (e *Engine) Revert(ctx context.Context, activityID string, department domain.Department, returnedBy, notes string) (domain.ProgressRecord, error) {
	if !e.seq.Contains(department) {
		return domain.ProgressRecord{}, domain.ErrUnknownDepartment
	}
	now := e.clock()
	returned, err := domain.NewTransition(domain.TransitionReturned, returnedBy, notes, now)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	reopened, err := domain.NewTransition(domain.TransitionReopened, returnedBy, notes, now)
	if err != nil {
		return domain.ProgressRecord{}, err
	}

	activity, active, err := e.loadActive(ctx, activityID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	if active.Department != department {
		return domain.ProgressRecord{}, ErrDepartmentNotActive
	}
	previous, hasPrevious := e.seq.Previous(department)
	if !hasPrevious {
		return domain.ProgressRecord{}, ErrNoPreviousDepartment
	}

	if err := e.repo.ReturnProgress(ctx, activityID, department, previous, returned, reopened); err != nil {
		return domain.ProgressRecord{}, err
	}

	scopes := []cache.Scope{
		cache.DepartmentList(string(department)),
		cache.DepartmentList(string(previous)),
		cache.DepartmentHistory(string(previous)),
		cache.Stats(),
	}
	if next, ok := e.seq.Next(department); ok {
		scopes = append(scopes, cache.DepartmentList(string(next)))
	}
	e.invalidate(scopes...)

	message := fmt.Sprintf("Activity %q was returned by %s", activity.Title, department)
	if reason := strings.TrimSpace(notes); reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	if err := e.notifyDepartment(ctx, previous, activityID, message); err != nil {
		return domain.ProgressRecord{}, err
	}
	return active.Apply(returned), nil
}

// ListActiveForDepartment returns the activities currently waiting on a
// department, deadline-ascending with missing deadlines last.
func (e *Engine) ListActiveForDepartment(ctx context.Context, department domain.Department) ([]domain.Activity, error) {
	if !e.seq.Contains(department) {
		return nil, domain.ErrUnknownDepartment
	}
	return cache.Query(e.cache, cache.DepartmentList(string(department)), e.ttl.DepartmentList, func() ([]domain.Activity, error) {
		return e.repo.ListActiveForDepartment(ctx, department)
	})
}

// ListCompletedForDepartment returns the activities that already passed
// through a department, most recently completed first.
func (e *Engine) ListCompletedForDepartment(ctx context.Context, department domain.Department) ([]HistoryEntry, error) {
	if !e.seq.Contains(department) {
		return nil, domain.ErrUnknownDepartment
	}
	return cache.Query(e.cache, cache.DepartmentHistory(string(department)), e.ttl.DepartmentHistory, func() ([]HistoryEntry, error) {
		return e.repo.ListCompletedForDepartment(ctx, department)
	})
}

// GetStats returns aggregate workflow statistics with a zero row for every
// department so dashboards render the full sequence.
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	return cache.Query(e.cache, cache.Stats(), e.ttl.Stats, func() (Stats, error) {
		total, completed, err := e.repo.CountActivities(ctx)
		if err != nil {
			return Stats{}, err
		}
		active, err := e.repo.CountActiveByDepartment(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats := Stats{
			TotalActivities: total,
			InProgress:      total - completed,
			Completed:       completed,
		}
		for _, dept := range e.seq.All() {
			stats.ByDepartment = append(stats.ByDepartment, DepartmentCount{
				Department: dept,
				Active:     active[dept],
			})
		}
		return stats, nil
	})
}

// ListNotifications returns one user's feed, newest first.
func (e *Engine) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return cache.Query(e.cache, cache.UserNotifications(userID), e.ttl.Notifications, func() ([]domain.Notification, error) {
		return e.repo.ListNotificationsForUser(ctx, userID, notificationFeedLimit)
	})
}

// MarkNotificationRead flags one feed entry as seen.
func (e *Engine) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	userID = strings.TrimSpace(userID)
	notificationID = strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return domain.ErrInvalidID
	}
	if err := e.repo.MarkNotificationRead(ctx, userID, notificationID); err != nil {
		return err
	}
	e.invalidate(cache.UserNotifications(userID))
	return nil
}

// RegisterUserInput holds directory entry attributes.
type RegisterUserInput struct {
	Name       string
	Department domain.Department
	Role       domain.Role
}

// RegisterUser adds a directory entry for recipient resolution.
func (e *Engine) RegisterUser(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	if in.Department != "" && !e.seq.Contains(in.Department) {
		return domain.User{}, domain.ErrUnknownDepartment
	}
	user, err := domain.NewUser(e.idGen(), in.Name, in.Department, in.Role, e.clock())
	if err != nil {
		return domain.User{}, err
	}
	if err := e.dir.CreateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("persist user: %w", err)
	}
	return user, nil
}

// loadActive fetches the activity and its currently active progress record.
func (e *Engine) loadActive(ctx context.Context, activityID string) (domain.Activity, domain.ProgressRecord, error) {
	activity, err := e.repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, domain.ProgressRecord{}, err
	}
	if activity.Status == domain.ActivityCompleted {
		return domain.Activity{}, domain.ProgressRecord{}, ErrActivityCompleted
	}
	records, err := e.repo.ListProgress(ctx, activityID)
	if err != nil {
		return domain.Activity{}, domain.ProgressRecord{}, err
	}
	active, ok := domain.ActiveRecord(records)
	if !ok {
		return domain.Activity{}, domain.ProgressRecord{}, ErrActivityCompleted
	}
	return activity, active, nil
}

// notifyDepartment persists one notification row per department user and
// clears each recipient's feed scope.
func (e *Engine) notifyDepartment(ctx context.Context, department domain.Department, activityID, message string) error {
	users, err := e.dir.ListUsersByDepartment(ctx, department)
	if err != nil {
		return fmt.Errorf("resolve %s recipients: %w", department, err)
	}
	return e.notify(ctx, users, activityID, message)
}

// notifyAdmins notifies administrative users on terminal advances.
func (e *Engine) notifyAdmins(ctx context.Context, activityID, message string) error {
	admins, err := e.dir.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("resolve admin recipients: %w", err)
	}
	return e.notify(ctx, admins, activityID, message)
}

func (e *Engine) notify(ctx context.Context, recipients []domain.User, activityID, message string) error {
	if len(recipients) == 0 {
		return nil
	}
	now := e.clock()
	notifications := make([]domain.Notification, 0, len(recipients))
	scopes := make([]cache.Scope, 0, len(recipients))
	for _, user := range recipients {
		n, err := domain.NewNotification(e.idGen(), user.ID, activityID, message, now)
		if err != nil {
			return err
		}
		notifications = append(notifications, n)
		scopes = append(scopes, cache.UserNotifications(user.ID))
	}
	if err := e.repo.CreateNotifications(ctx, notifications); err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}
	e.invalidate(scopes...)
	return nil
}

// invalidate clears cache scopes synchronously before the mutation returns.
func (e *Engine) invalidate(scopes ...cache.Scope) {
	e.cache.Invalidate(scopes...)
	keys := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		keys = append(keys, scope.Key())
	}
	log.Debug("cache invalidated", "scopes", strings.Join(keys, ","))
}
