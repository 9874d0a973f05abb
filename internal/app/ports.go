package app

import (
	"context"

	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
)

// HistoryEntry pairs an activity with its progress record for one department
// it already passed through.
type HistoryEntry struct {
	Activity domain.Activity
	Progress domain.ProgressRecord
}

// DepartmentCount is one per-department slice of the aggregate statistics.
type DepartmentCount struct {
	Department domain.Department `json:"department"`
	Active     int               `json:"active"`
}

// Stats aggregates workflow position across all activities.
type Stats struct {
	TotalActivities int               `json:"total_activities"`
	InProgress      int               `json:"in_progress"`
	Completed       int               `json:"completed"`
	ByDepartment    []DepartmentCount `json:"by_department"`
}

// Repository is the persistence port for activities, the progress ledger, and
// notifications. CompleteProgress and ReturnProgress are conditional writes:
// the update predicate requires the current status to match, so of two racing
// writers exactly one succeeds and the other observes a state conflict.
type Repository interface {
	CreateActivity(ctx context.Context, activity domain.Activity, ledger []domain.ProgressRecord) error
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
	DeleteActivity(ctx context.Context, id string) error

	ListProgress(ctx context.Context, activityID string) ([]domain.ProgressRecord, error)
	// CompleteProgress flips the department's record pending -> completed and
	// appends the transition in one transaction. finalize also marks the
	// activity completed (terminal department).
	CompleteProgress(ctx context.Context, activityID string, department domain.Department, tr domain.Transition, finalize bool) error
	// ReturnProgress atomically records a return on the current department and
	// reopens the previous one. A partial write would leave zero or two active
	// departments, so both conditional updates commit together or not at all.
	ReturnProgress(ctx context.Context, activityID string, current, previous domain.Department, returned, reopened domain.Transition) error

	ListActiveForDepartment(ctx context.Context, department domain.Department) ([]domain.Activity, error)
	ListCompletedForDepartment(ctx context.Context, department domain.Department) ([]HistoryEntry, error)
	CountActivities(ctx context.Context) (total, completed int, err error)
	CountActiveByDepartment(ctx context.Context) (map[domain.Department]int, error)

	CreateNotifications(ctx context.Context, notifications []domain.Notification) error
	ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

// Directory resolves notification recipients. It is a read-mostly
// collaborator; CreateUser exists for bootstrap and administration.
type Directory interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	ListUsersByDepartment(ctx context.Context, department domain.Department) ([]domain.User, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
}
