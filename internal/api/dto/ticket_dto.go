package dto

import (
	"time"

	"github.com/helpdesk/ticketd/internal/domain"
)

// CreateTicketRequest payload. Any status the caller supplies is ignored;
// new tickets always open in the initial state.
type CreateTicketRequest struct {
	Message  string    `json:"message" validate:"required"`
	Category FlexValue `json:"category"`
	Priority FlexValue `json:"priority"`
}

// UpdateTicketRequest is the admin triage patch; absent fields stay untouched.
type UpdateTicketRequest struct {
	Message  *string    `json:"message"`
	Status   *FlexValue `json:"status"`
	Category *FlexValue `json:"category"`
	Priority *FlexValue `json:"priority"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// UserRefResponse is the denormalized identity embedded in views.
type UserRefResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CommentResponse represents a ticket comment with its author.
type CommentResponse struct {
	ID          int64           `json:"id"`
	TicketID    int64           `json:"ticket_id"`
	Author      UserRefResponse `json:"author"`
	Comment     string          `json:"comment"`
	CommentDate time.Time       `json:"comment_date"`
}

// TicketResponse is the denormalized ticket view.
type TicketResponse struct {
	ID        int64             `json:"id"`
	Message   string            `json:"message"`
	Status    LookupRefResponse `json:"status"`
	Category  LookupRefResponse `json:"category"`
	Priority  LookupRefResponse `json:"priority"`
	Requester *UserRefResponse  `json:"requester"`
	Comments  []CommentResponse `json:"comments"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ChangeEntryResponse is one row of a ticket's audit trail.
type ChangeEntryResponse struct {
	ID            int64     `json:"id"`
	TicketID      int64     `json:"ticket_id"`
	UserID        int64     `json:"user_id"`
	FieldChanged  string    `json:"field_changed"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	ChangeDate    time.Time `json:"change_date"`
}

// LookupRefResponse pairs a reference id with its display name.
type LookupRefResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewTicketResponse maps a domain detail view.
func NewTicketResponse(detail *domain.TicketDetail) TicketResponse {
	resp := TicketResponse{
		ID:        detail.ID,
		Message:   detail.Message,
		Status:    LookupRefResponse{ID: detail.StatusID, Name: detail.StatusName},
		Category:  LookupRefResponse{ID: detail.CategoryID, Name: detail.CategoryName},
		Priority:  LookupRefResponse{ID: detail.PriorityID, Name: detail.PriorityName},
		Comments:  make([]CommentResponse, 0, len(detail.Comments)),
		CreatedAt: detail.CreatedAt,
		UpdatedAt: detail.UpdatedAt,
	}
	if detail.Requester != nil {
		resp.Requester = &UserRefResponse{ID: detail.Requester.ID, Username: detail.Requester.Username}
	}
	for _, comment := range detail.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&comment))
	}
	return resp
}

// NewChangeEntryResponse maps an audit row.
func NewChangeEntryResponse(entry *domain.ChangeEntry) ChangeEntryResponse {
	return ChangeEntryResponse{
		ID:            entry.ID,
		TicketID:      entry.TicketID,
		UserID:        entry.UserID,
		FieldChanged:  entry.FieldChanged,
		PreviousValue: entry.PreviousValue,
		NewValue:      entry.NewValue,
		ChangeDate:    entry.ChangeDate,
	}
}

// NewCommentResponse maps a domain comment view.
func NewCommentResponse(detail *domain.CommentDetail) CommentResponse {
	return CommentResponse{
		ID:          detail.ID,
		TicketID:    detail.TicketID,
		Author:      UserRefResponse{ID: detail.Author.ID, Username: detail.Author.Username},
		Comment:     detail.Body,
		CommentDate: detail.CommentDate,
	}
}
