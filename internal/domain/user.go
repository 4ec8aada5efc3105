package domain

import "time"

// Role enumerates the four fixed user roles.
type Role string

const (
	RoleEmployee  Role = "EMPLOYEE"
	RoleManager   Role = "MANAGER"
	RoleITSupport Role = "IT_SUPPORT"
	RoleAdmin     Role = "ADMIN"
)

// IsOverride reports whether the role may force lifecycle transitions
// outside their normal preconditions to unstick workflows.
func (r Role) IsOverride() bool {
	return r == RoleAdmin || r == RoleITSupport
}

// User is the domain model for every actor in the system.
type User struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
