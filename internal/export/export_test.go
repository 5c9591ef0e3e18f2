package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"expensebook/internal/core"
	"expensebook/internal/reconcile"
)

var exportedAt = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func snapshot() reconcile.Snapshot {
	budget := core.Budget{Limit: decimal.NewFromInt(100), Month: "January", Year: "2024"}
	cmp := core.Compare(decimal.RequireFromString("110.5"), budget)
	return reconcile.Snapshot{
		Identity: "a@b.co",
		Records: []core.ExpenseRecord{
			{ID: 1, RecordType: core.RecordTypeExpense, Category: "Food", Amount: core.MustAmount("100.5"), Time: core.TimeOfDay{Hour: 12}, Date: core.NewDate(2024, 1, 1)},
			{ID: 2, RecordType: core.RecordTypeExpense, Category: "Bus", Note: "ticket", Amount: core.MustAmount("10"), Time: core.TimeOfDay{Hour: 8, Minute: 15}, Date: core.NewDate(2024, 1, 2)},
			{ID: 3, RecordType: core.RecordTypeExpense, Category: "Gift", Amount: core.InvalidAmount("abc"), Date: core.NewDate(2024, 1, 3)},
		},
		Budget:     &budget,
		TotalSpent: cmp.TotalSpent,
		Skipped:    1,
		Comparison: &cmp,
		Seq:        4,
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(snapshot(), exportedAt)

	require.Len(t, rows, 1+3+7)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []any{int64(1), "Expense", "Food", "", "100.50", "12:00:00", "2024-01-01"}, rows[1])
	assert.Equal(t, []any{int64(3), "Expense", "Gift", "", "abc", "00:00:00", "2024-01-03"}, rows[3])
	assert.Empty(t, rows[4])

	summary := map[string]any{}
	for _, r := range rows[5:] {
		summary[r[0].(string)] = r[1]
	}
	assert.Equal(t, "110.50", summary["Total spent"])
	assert.Equal(t, "100.00", summary["Budget limit"])
	assert.Equal(t, StatusExceeded, summary["Status"])
	assert.Equal(t, 1, summary["Skipped records"])
	assert.Equal(t, "2024-02-01T10:00:00Z", summary["Exported at"])
}

func TestStatus(t *testing.T) {
	within := core.Comparison{Exceeded: false}
	tests := []struct {
		name string
		snap reconcile.Snapshot
		want string
	}{
		{"within", reconcile.Snapshot{Budget: &core.Budget{}, Comparison: &within}, StatusWithin},
		{"no budget", reconcile.Snapshot{}, StatusNoBudget},
		{"degraded", reconcile.Snapshot{Degraded: true}, StatusUnavailable},
		{"budget without comparison", reconcile.Snapshot{Budget: &core.Budget{}, Degraded: true}, StatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.snap))
		})
	}
}

func TestSheetsExporter_Export(t *testing.T) {
	var (
		mu      sync.Mutex
		calls   []string
		written [][]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var vr struct {
				Values [][]any `json:"values"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			written = vr.Values
			_, _ = w.Write([]byte(`{"updatedRows": 11}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	exp, err := newSheetsExporter(ctx, SheetsConfig{SpreadsheetID: "sheet-1", SheetName: "Export"}, nil,
		goption.WithEndpoint(srv.URL+"/"), goption.WithoutAuthentication())
	require.NoError(t, err)
	exp.now = func() time.Time { return exportedAt }

	require.NoError(t, exp.Export(ctx, snapshot()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "POST /v4/spreadsheets/sheet-1/values/Export!A:Z:clear"), calls[0])
	assert.True(t, strings.HasPrefix(calls[1], "PUT /v4/spreadsheets/sheet-1/values/Export!A1"), calls[1])
	require.Len(t, written, 11)
	assert.Equal(t, "Food", written[1][2])
}

func TestSheetsExporter_RejectsEmptySnapshot(t *testing.T) {
	exp, err := newSheetsExporter(context.Background(), SheetsConfig{SpreadsheetID: "x"}, nil,
		goption.WithEndpoint("http://127.0.0.1:1/"), goption.WithoutAuthentication())
	require.NoError(t, err)
	assert.Error(t, exp.Export(context.Background(), reconcile.Snapshot{}))
}

func TestNewSheetsExporter_Credentials(t *testing.T) {
	_, err := NewSheetsExporter(context.Background(), SheetsConfig{SpreadsheetID: "x"}, nil)
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = NewSheetsExporter(context.Background(), SheetsConfig{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	assert.ErrorContains(t, err, "read service account file")

	_, err = loadCredentials(SheetsConfig{CredentialsJSON: `{"type":"service_account"}`})
	assert.NoError(t, err)
}
