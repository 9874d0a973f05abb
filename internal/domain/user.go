package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// User is a directory entry. Several people share one department login, which
// is why every completion and return carries its own actor attribution.
type User struct {
	ID         string
	Name       string
	Department Department
	Role       Role
	CreatedAt  time.Time
}

func NewUser(id, name string, department Department, role Role, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	if id == "" {
		return User{}, ErrInvalidID
	}
	if name == "" {
		return User{}, ErrInvalidName
	}
	if role == "" {
		role = RoleOperator
	}
	if role != RoleAdmin && role != RoleOperator {
		return User{}, ErrInvalidRole
	}
	if role == RoleOperator && department == "" {
		return User{}, ErrUnknownDepartment
	}

	return User{
		ID:         id,
		Name:       name,
		Department: department,
		Role:       role,
		CreatedAt:  now.UTC(),
	}, nil
}
