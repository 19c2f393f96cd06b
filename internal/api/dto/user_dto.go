package dto

import (
	"time"

	"github.com/helpdesk/ticketd/internal/domain"
)

// RegisterUserRequest payload.
type RegisterUserRequest struct {
	Username     string `json:"username" validate:"required"`
	Password     string `json:"password" validate:"required,min=8"`
	DepartmentID int64  `json:"department_id" validate:"required"`
	IsAdmin      bool   `json:"is_admin"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is a partial account update.
type UpdateUserRequest struct {
	Username     *string `json:"username"`
	Password     *string `json:"password"`
	DepartmentID *int64  `json:"department_id"`
	IsAdmin      *bool   `json:"is_admin"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	IsAdmin      bool      `json:"is_admin"`
	DepartmentID int64     `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthResponse carries an issued token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		IsAdmin:      user.IsAdmin,
		DepartmentID: user.DepartmentID,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
