package domain

import "strings"

// Department is a named production stage. Its position in the process is
// defined by the Sequence, never by the department itself.
type Department string

// NormalizeDepartment canonicalizes a raw department name.
func NormalizeDepartment(raw string) Department {
	return Department(strings.ToLower(strings.TrimSpace(raw)))
}

// Sequence is the fixed, totally ordered set of departments every activity
// passes through. It is process-wide configuration, validated once at startup.
type Sequence struct {
	departments []Department
}

// NewSequence validates and builds the ordered department enumeration.
func NewSequence(names []string) (Sequence, error) {
	out := make([]Department, 0, len(names))
	seen := map[Department]struct{}{}
	for _, raw := range names {
		dept := NormalizeDepartment(raw)
		if dept == "" {
			continue
		}
		if _, ok := seen[dept]; ok {
			return Sequence{}, ErrDuplicateDepartment
		}
		seen[dept] = struct{}{}
		out = append(out, dept)
	}
	if len(out) == 0 {
		return Sequence{}, ErrEmptySequence
	}
	return Sequence{departments: out}, nil
}

// Len returns the number of departments in the sequence.
func (s Sequence) Len() int {
	return len(s.departments)
}

// All returns the departments in process order.
func (s Sequence) All() []Department {
	out := make([]Department, len(s.departments))
	copy(out, s.departments)
	return out
}

// First returns the entry department of the process.
func (s Sequence) First() (Department, bool) {
	if len(s.departments) == 0 {
		return "", false
	}
	return s.departments[0], true
}

// Index returns the zero-based position of a department.
func (s Sequence) Index(dept Department) (int, bool) {
	for i, d := range s.departments {
		if d == dept {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether the department belongs to the sequence.
func (s Sequence) Contains(dept Department) bool {
	_, ok := s.Index(dept)
	return ok
}

// Next returns the department after dept, or false at the end of the process.
func (s Sequence) Next(dept Department) (Department, bool) {
	idx, ok := s.Index(dept)
	if !ok || idx+1 >= len(s.departments) {
		return "", false
	}
	return s.departments[idx+1], true
}

// Previous returns the department before dept, or false at the start of the
// process.
func (s Sequence) Previous(dept Department) (Department, bool) {
	idx, ok := s.Index(dept)
	if !ok || idx == 0 {
		return "", false
	}
	return s.departments[idx-1], true
}
