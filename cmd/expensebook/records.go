package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"expensebook/internal/core"
	"expensebook/internal/reconcile"
	"expensebook/internal/records"
)

type recordFlags struct {
	category string
	note     string
	amount   string
	time     string
	date     string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "Category label, e.g. Food")
	cmd.Flags().StringVar(&f.note, "note", "", "Optional note")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount spent, e.g. 12.50")
	cmd.Flags().StringVar(&f.time, "time", "", "Time of day as HH:MM (default now)")
	cmd.Flags().StringVar(&f.date, "date", "", "Date as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *recordFlags) fields(now time.Time) records.Fields {
	out := records.Fields{
		Category: f.category,
		Note:     f.note,
		Amount:   f.amount,
		Time:     f.time,
		Date:     f.date,
	}
	if out.Time == "" {
		out.Time = now.Format("15:04")
	}
	if out.Date == "" {
		out.Date = now.Format(core.DateLayout)
	}
	return out
}

func newAddCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Example: `  expensebook add --category Food --amount 12.50
  expensebook add --category Rent --amount 800 --date 2024-01-01 --time 09:00 --note January`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.engine.AddExpense(cmd.Context(), f.fields(time.Now()))
			return afterMutation(a, snap, err)
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace every field of a record",
		Long: `Replace every field of a record. There is no partial update: fields
left out take their defaults, not their previous values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := a.engine.EditExpense(cmd.Context(), id, f.fields(time.Now()))
			return afterMutation(a, snap, err)
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete one of your records",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			snap, err := a.engine.DeleteExpense(cmd.Context(), id)
			return afterMutation(a, snap, err)
		},
	}
}

// afterMutation renders the dashboard refreshed by a successful mutation.
func afterMutation(a *app, snap reconcile.Snapshot, err error) error {
	if err != nil {
		return err
	}
	renderSnapshot(a.out, snap)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationError("cli.id", fmt.Sprintf("invalid record id %q", s), err)
	}
	return id, nil
}
