package domain

import "time"

// InitialStatusID is the status every new ticket starts in ("open").
// The seed migration guarantees this row exists.
const InitialStatusID int64 = 1

// LookupKind identifies which reference table a lookup value belongs to.
type LookupKind string

const (
	LookupCategory LookupKind = "category"
	LookupPriority LookupKind = "priority"
	LookupStatus   LookupKind = "status"
)

// Lookup is a small reference value (category, priority or status).
type Lookup struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
