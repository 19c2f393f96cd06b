package domain

import "time"

// Department represents an organizational unit users belong to.
type Department struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
