package sheets

import (
	"context"
	"time"
)

// Row is one line of the activity log. Columns are written in field order.
type Row struct {
	Timestamp time.Time
	EventID   string
	Type      string
	UserID    int64
	EntityID  int64
	Summary   string
	Details   string
}

// Ports for outbound adapters.
type (
	ActivityWriter interface {
		// AppendActivity writes the row and returns a reference to where it landed.
		AppendActivity(ctx context.Context, row Row) (rowRef string, err error)
	}
)

// Values flattens a row into spreadsheet cells.
func (r Row) Values() []any {
	return []any{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.EventID,
		r.Type,
		r.UserID,
		r.EntityID,
		r.Summary,
		r.Details,
	}
}
