package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

type ActivityStatus string

const (
	ActivityInProgress ActivityStatus = "in_progress"
	ActivityCompleted  ActivityStatus = "completed"
)

// Activity is a production ticket. Creation attributes are immutable; only
// the overall status changes, and only when the terminal department advances.
type Activity struct {
	ID          string
	Title       string
	Description string
	ImageRef    string
	Quantity    int
	Client      string
	Priority    Priority
	Deadline    *time.Time
	Status      ActivityStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ActivityInput struct {
	ID          string
	Title       string
	Description string
	ImageRef    string
	Quantity    int
	Client      string
	Priority    Priority
	Deadline    *time.Time
}

func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageRef = strings.TrimSpace(in.ImageRef)
	in.Client = strings.TrimSpace(in.Client)

	if in.ID == "" {
		return Activity{}, ErrInvalidID
	}
	if in.Title == "" {
		return Activity{}, ErrInvalidTitle
	}
	if in.Quantity <= 0 {
		return Activity{}, ErrInvalidQuantity
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Activity{}, ErrInvalidPriority
	}

	return Activity{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		ImageRef:    in.ImageRef,
		Quantity:    in.Quantity,
		Client:      in.Client,
		Priority:    in.Priority,
		Deadline:    normalizeDeadline(in.Deadline),
		Status:      ActivityInProgress,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Complete marks the activity finished after its terminal department advances.
func (a *Activity) Complete(now time.Time) {
	a.Status = ActivityCompleted
	a.UpdatedAt = now.UTC()
}

func normalizeDeadline(deadline *time.Time) *time.Time {
	if deadline == nil {
		return nil
	}
	ts := deadline.UTC().Truncate(time.Second)
	return &ts
}
