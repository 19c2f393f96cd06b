package domain

import "time"

// Comment is a message exchanged on a ticket.
type Comment struct {
	ID          int64
	TicketID    int64
	AuthorID    int64
	Body        string
	CommentDate time.Time
}

// CommentDetail pairs a comment with its author's denormalized identity.
type CommentDetail struct {
	ID          int64
	TicketID    int64
	Author      UserRef
	Body        string
	CommentDate time.Time
}
