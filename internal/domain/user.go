package domain

import "time"

// User is an account that can file tickets; admins additionally triage them.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	DepartmentID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the denormalized identity attached to tickets and comments.
type UserRef struct {
	ID       int64
	Username string
}
