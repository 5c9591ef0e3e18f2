package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"expensebook/internal/export"
	"expensebook/internal/reconcile"
)

func renderSnapshot(w io.Writer, snap reconcile.Snapshot) {
	if len(snap.Records) == 0 {
		fmt.Fprintln(w, "No records yet.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tTIME\tCATEGORY\tAMOUNT\tNOTE")
		for _, r := range snap.Records {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Date, r.Time, r.Category, r.Amount, r.Note)
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\nTotal spent: %s\n", snap.TotalSpent.StringFixed(2))
	if snap.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d record(s) with an unreadable amount.\n", snap.Skipped)
	}

	switch {
	case snap.Comparison != nil:
		fmt.Fprintf(w, "Budget: %s (%s %s)\n",
			snap.Comparison.BudgetLimit.StringFixed(2), snap.Budget.Month, snap.Budget.Year)
		if snap.Comparison.Exceeded {
			fmt.Fprintf(w, "Status: %s by %s\n", export.StatusExceeded, snap.Comparison.Remaining().Neg().StringFixed(2))
		} else {
			fmt.Fprintf(w, "Status: %s, %s left\n", export.StatusWithin, snap.Comparison.Remaining().StringFixed(2))
		}
	case snap.Degraded:
		fmt.Fprintln(w, "Budget comparison unavailable until the next complete refresh.")
	default:
		fmt.Fprintln(w, "No budget set.")
	}
}
