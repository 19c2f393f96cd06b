package domain

// Actor is the authenticated identity performing an operation. It is built by
// the auth middleware from verified token claims; services trust it as-is.
type Actor struct {
	ID           int64
	Username     string
	IsAdmin      bool
	DepartmentID *int64
}
