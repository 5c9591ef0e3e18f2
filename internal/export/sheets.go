package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensebook/internal/log"
	"expensebook/internal/reconcile"
)

// Exporter writes a snapshot somewhere outside the application.
type Exporter interface {
	Export(ctx context.Context, snap reconcile.Snapshot) error
}

// SheetsConfig selects the target spreadsheet and service account.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// SheetsExporter replaces the content of one sheet with the snapshot.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
	now           func() time.Time
}

var _ Exporter = (*SheetsExporter)(nil)

// NewSheetsExporter authenticates with service account credentials, taken
// inline first and from a file otherwise.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *log.Logger) (*SheetsExporter, error) {
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return newSheetsExporter(ctx, cfg, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...goption.ClientOption) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Expenses"
	}
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheet,
		logger:        logger.WithComponent(log.ComponentExport),
		now:           time.Now,
	}, nil
}

func loadCredentials(cfg SheetsConfig) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Export clears the sheet and writes the rows built from snap.
func (e *SheetsExporter) Export(ctx context.Context, snap reconcile.Snapshot) error {
	if !snap.Loaded() {
		return errors.New("nothing to export: the dashboard has not been loaded")
	}
	rows := BuildRows(snap, e.now())

	clearRange := e.sheetName + "!A:Z"
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := e.sheetName + "!A1"
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	e.logger.InfoContext(ctx, "Exported snapshot",
		log.FieldUser, snap.Identity,
		log.FieldRecordCount, len(snap.Records),
		log.FieldOperation, log.OpExport,
		"updated_rows", resp.UpdatedRows)
	return nil
}
