package dto

import (
	"time"

	"github.com/helpdesk/ticketd/internal/domain"
)

// LookupRequest names a lookup value or department.
type LookupRequest struct {
	Name string `json:"name" validate:"required"`
}

// LookupResponse represents one reference table row.
type LookupResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLookupResponse maps a lookup row.
func NewLookupResponse(lookup *domain.Lookup) LookupResponse {
	return LookupResponse{
		ID:        lookup.ID,
		Name:      lookup.Name,
		CreatedAt: lookup.CreatedAt,
		UpdatedAt: lookup.UpdatedAt,
	}
}

// NewDepartmentResponse maps a department row.
func NewDepartmentResponse(dept *domain.Department) LookupResponse {
	return LookupResponse{
		ID:        dept.ID,
		Name:      dept.Name,
		CreatedAt: dept.CreatedAt,
		UpdatedAt: dept.UpdatedAt,
	}
}
