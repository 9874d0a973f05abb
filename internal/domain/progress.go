package domain

import (
	"slices"
	"strings"
	"time"
)

type ProgressStatus string

const (
	ProgressPending   ProgressStatus = "pending"
	ProgressCompleted ProgressStatus = "completed"
)

// TransitionKind classifies one entry in a record's transition log.
type TransitionKind string

const (
	// TransitionCompleted is a forward completion by the department's operator.
	TransitionCompleted TransitionKind = "completed"
	// TransitionReturned marks the record's department as the origin of a
	// backward return; the stage stays pending and must be redone.
	TransitionReturned TransitionKind = "returned"
	// TransitionReopened resets a completed record to pending when the
	// department after it returns work.
	TransitionReopened TransitionKind = "reopened"
)

// Transition is one append-only audit entry on a progress record.
type Transition struct {
	Kind  TransitionKind
	Actor string
	Notes string
	At    time.Time
}

// NewTransition validates attribution before a transition is appended.
func NewTransition(kind TransitionKind, actor, notes string, now time.Time) (Transition, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return Transition{}, ErrEmptyActor
	}
	switch kind {
	case TransitionCompleted, TransitionReturned, TransitionReopened:
	default:
		return Transition{}, ErrValidation
	}
	return Transition{
		Kind:  kind,
		Actor: actor,
		Notes: strings.TrimSpace(notes),
		At:    now.UTC(),
	}, nil
}

// ProgressRecord is the per-activity, per-department unit of workflow state.
// Status derives from the tail of the transition log; earlier entries remain
// as the audit trail.
type ProgressRecord struct {
	ID          string
	ActivityID  string
	Department  Department
	Seq         int
	Status      ProgressStatus
	Transitions []Transition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLedger creates one pending record per department, eagerly, in process
// order. The records are persisted atomically with the activity.
func NewLedger(activityID string, seq Sequence, idGen func() string, now time.Time) ([]ProgressRecord, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return nil, ErrInvalidID
	}
	if seq.Len() == 0 {
		return nil, ErrEmptySequence
	}
	out := make([]ProgressRecord, 0, seq.Len())
	for i, dept := range seq.All() {
		out = append(out, ProgressRecord{
			ID:         idGen(),
			ActivityID: activityID,
			Department: dept,
			Seq:        i,
			Status:     ProgressPending,
			CreatedAt:  now.UTC(),
			UpdatedAt:  now.UTC(),
		})
	}
	return out, nil
}

// StatusFromTransitions derives a record's status from its log tail. A
// returned tail stays pending: the stage must be redone once upstream rework
// lands, while the return itself remains visible in the log.
func StatusFromTransitions(transitions []Transition) ProgressStatus {
	if len(transitions) == 0 {
		return ProgressPending
	}
	switch transitions[len(transitions)-1].Kind {
	case TransitionCompleted:
		return ProgressCompleted
	default:
		return ProgressPending
	}
}

// Apply appends a transition and re-derives the record status.
func (r ProgressRecord) Apply(tr Transition) ProgressRecord {
	r.Transitions = append(slices.Clone(r.Transitions), tr)
	r.Status = StatusFromTransitions(r.Transitions)
	r.UpdatedAt = tr.At.UTC()
	return r
}

// LastTransition returns the tail of the log, or nil for an untouched record.
func (r ProgressRecord) LastTransition() *Transition {
	if len(r.Transitions) == 0 {
		return nil
	}
	tr := r.Transitions[len(r.Transitions)-1]
	return &tr
}

// CompletedBy returns the operator of a forward completion, or "" when the
// record is not currently completed.
func (r ProgressRecord) CompletedBy() string {
	tr := r.LastTransition()
	if tr == nil || tr.Kind != TransitionCompleted {
		return ""
	}
	return tr.Actor
}

// CompletedAt returns the timestamp of the current forward completion.
func (r ProgressRecord) CompletedAt() *time.Time {
	tr := r.LastTransition()
	if tr == nil || tr.Kind != TransitionCompleted {
		return nil
	}
	ts := tr.At
	return &ts
}

// Returned reports whether the record's latest movement was a backward
// return raised from this department.
func (r ProgressRecord) Returned() bool {
	tr := r.LastTransition()
	return tr != nil && tr.Kind == TransitionReturned
}

// ReturnedBy returns the returner's attribution for a returned record.
func (r ProgressRecord) ReturnedBy() string {
	tr := r.LastTransition()
	if tr == nil || tr.Kind != TransitionReturned {
		return ""
	}
	return tr.Actor
}

// ReturnedAt returns the timestamp of the return raised from this department.
func (r ProgressRecord) ReturnedAt() *time.Time {
	tr := r.LastTransition()
	if tr == nil || tr.Kind != TransitionReturned {
		return nil
	}
	ts := tr.At
	return &ts
}

// ActiveRecord returns the first pending record in department order, provided
// every record before it is completed. It returns false when the activity has
// passed through every department.
func ActiveRecord(records []ProgressRecord) (ProgressRecord, bool) {
	ordered := slices.Clone(records)
	slices.SortFunc(ordered, func(a, b ProgressRecord) int {
		return a.Seq - b.Seq
	})
	for _, r := range ordered {
		if r.Status == ProgressPending {
			return r, true
		}
	}
	return ProgressRecord{}, false
}
