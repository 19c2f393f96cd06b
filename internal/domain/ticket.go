package domain

import "time"

// Ticket is the aggregate root for support requests. Comments and change
// history rows belong to it and are removed with it.
type Ticket struct {
	ID          int64
	Message     string
	StatusID    int64
	CategoryID  int64
	PriorityID  int64
	RequesterID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketDetail is the denormalized view returned by ticket workflows:
// lookup references are augmented with their display names and the requester
// is resolved to an identity (nil when the owning account was deleted).
type TicketDetail struct {
	ID           int64
	Message      string
	StatusID     int64
	StatusName   string
	CategoryID   int64
	CategoryName string
	PriorityID   int64
	PriorityName string
	Requester    *UserRef
	Comments     []CommentDetail
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
