package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
	EventTicketDeleted EventType = "ticket_deleted"
	EventCommentAdded  EventType = "comment_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	ActorID   int64       `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// FieldChange mirrors one audit row in an update event.
type FieldChange struct {
	Field    string `json:"field"`
	Previous string `json:"previous"`
	New      string `json:"new"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID  int64 `json:"category_id"`
	PriorityID  int64 `json:"priority_id"`
	RequesterID int64 `json:"requester_id"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Changes []FieldChange `json:"changes"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	AuthorID    int64  `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}
