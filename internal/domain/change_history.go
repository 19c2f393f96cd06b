package domain

import "time"

// Ticket field names recorded in the audit trail.
const (
	FieldMessage  = "message"
	FieldStatus   = "status"
	FieldCategory = "category"
	FieldPriority = "priority"
)

// ChangeEntry is an immutable audit row: one per field that actually changed
// in a ticket update. Values are stored in their serialized textual form even
// for reference fields.
type ChangeEntry struct {
	ID            int64
	TicketID      int64
	UserID        int64
	FieldChanged  string
	PreviousValue string
	NewValue      string
	ChangeDate    time.Time
}
