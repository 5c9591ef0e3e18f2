package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expensebook/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the dashboard somewhere else",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sheets",
		Short: "Write records and totals to a Google Sheet",
		Long: `Refresh the dashboard and replace the content of GOOGLE_SHEET_NAME in
GOOGLE_SPREADSHEET_ID with it. Authenticates with the service account in
GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.SheetsEnabled() {
				return fmt.Errorf("set GOOGLE_SPREADSHEET_ID to export")
			}
			exp, err := export.NewSheetsExporter(cmd.Context(), export.SheetsConfig{
				SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
				SheetName:       a.cfg.GoogleSheetName,
				CredentialsJSON: a.cfg.GoogleCredentialsJSON,
				CredentialsFile: a.cfg.GoogleCredentialsFile,
			}, a.logger)
			if err != nil {
				return err
			}
			return runExport(cmd, a, exp)
		},
	})
	return cmd
}

// runExport only exports a complete snapshot: a partial one would write a
// summary that disagrees with the records above it.
func runExport(cmd *cobra.Command, a *app, exp export.Exporter) error {
	snap, err := a.engine.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	if err := exp.Export(cmd.Context(), snap); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d records (%s).\n", len(snap.Records), export.Status(snap))
	return nil
}
