package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"expensebook/internal/budgets"
	"expensebook/internal/session"
)

func newBudgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set or show your spending limit",
	}
	cmd.AddCommand(newBudgetSetCmd(a), newBudgetLatestCmd(a))
	return cmd
}

func newBudgetSetCmd(a *app) *cobra.Command {
	var f budgets.Fields
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the budget for a month",
		Long: `Set the budget for a month. The budget written last is the one the
dashboard compares against, whatever month it names.`,
		Example: "  expensebook budget set --amount 500 --month January --year 2024",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if f.Month == "" {
				f.Month = now.Month().String()
			}
			if f.Year == "" {
				f.Year = strconv.Itoa(now.Year())
			}
			snap, err := a.engine.SetBudget(cmd.Context(), f)
			return afterMutation(a, snap, err)
		},
	}
	cmd.Flags().StringVar(&f.Budget, "amount", "", "Spending limit")
	cmd.Flags().StringVar(&f.Month, "month", "", "Month label (default current month)")
	cmd.Flags().StringVar(&f.Year, "year", "", "Year (default current year)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newBudgetLatestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently updated budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := session.Identity(cmd.Context(), a.sessions)
			if err != nil {
				return err
			}
			b, ok, err := a.budgets.Latest(cmd.Context(), email)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "No budget set.")
				return nil
			}
			fmt.Fprintf(a.out, "%s for %s %s (updated %s)\n",
				b.Limit.StringFixed(2), b.Month, b.Year, b.UpdatedAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}
