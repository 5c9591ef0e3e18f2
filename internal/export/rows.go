package export

import (
	"time"

	"expensebook/internal/reconcile"
)

// Header is the first row of the records table.
var Header = []any{"ID", "Type", "Category", "Note", "Amount", "Time", "Date"}

// Status labels written in the summary block.
const (
	StatusExceeded    = "Exceeded"
	StatusWithin      = "Within budget"
	StatusNoBudget    = "No budget"
	StatusUnavailable = "Unavailable"
)

// BuildRows lays out a snapshot as the records table followed by a blank row
// and a summary block. Amounts are written as fixed two-decimal text.
func BuildRows(snap reconcile.Snapshot, exportedAt time.Time) [][]any {
	rows := make([][]any, 0, len(snap.Records)+8)
	rows = append(rows, Header)
	for _, r := range snap.Records {
		rows = append(rows, []any{r.ID, string(r.RecordType), r.Category, r.Note, r.Amount.String(), r.Time.String(), r.Date.String()})
	}

	limit := ""
	if snap.Budget != nil {
		limit = snap.Budget.Limit.StringFixed(2)
	}

	rows = append(rows,
		[]any{},
		[]any{"Account", snap.Identity},
		[]any{"Total spent", snap.TotalSpent.StringFixed(2)},
		[]any{"Budget limit", limit},
		[]any{"Status", Status(snap)},
		[]any{"Skipped records", snap.Skipped},
		[]any{"Exported at", exportedAt.UTC().Format(time.RFC3339)},
	)
	return rows
}

// Status summarises the comparison of a snapshot in one label.
func Status(snap reconcile.Snapshot) string {
	switch {
	case snap.Comparison != nil && snap.Comparison.Exceeded:
		return StatusExceeded
	case snap.Comparison != nil:
		return StatusWithin
	case snap.Budget == nil && !snap.Degraded:
		return StatusNoBudget
	default:
		return StatusUnavailable
	}
}
