package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/config"
	"expensebook/internal/core"
	"expensebook/internal/export"
	apphttp "expensebook/internal/http"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/reconcile"
	"expensebook/internal/session"
	"expensebook/internal/storage"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	srv, err := apphttp.NewServer(apphttp.Config{RateLimitRPS: 1000, RateLimitBurst: 1000}, repo)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	cfg := config.Load()
	cfg.APIBaseURL = ts.URL
	a := &app{}
	require.NoError(t, a.wire(cfg, log.Discard(), session.NewMemoryStore(), notify.Discard))
	return a
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsRequireSession(t *testing.T) {
	a := newTestApp(t)

	for _, args := range [][]string{
		{"whoami"},
		{"dashboard"},
		{"add", "--category", "Food", "--amount", "1"},
		{"delete", "1"},
		{"budget", "latest"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, a, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrAuth), "got %v", err)
		})
	}
}

func TestDashboardFlow(t *testing.T) {
	a := newTestApp(t)

	out, err := run(t, a, "register", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful")

	out, err = run(t, a, "login", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
	assert.Contains(t, out, "No records yet.")
	assert.Contains(t, out, "No budget set.")

	out, err = run(t, a, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com\n", out)

	out, err = run(t, a, "budget", "set", "--amount", "100", "--month", "January", "--year", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Budget: 100.00 (January 2024)")
	assert.Contains(t, out, "Status: Within budget, 100.00 left")

	out, err = run(t, a, "add", "--category", "Food", "--amount", "100", "--time", "12:00", "--date", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "Total spent: 100.00")
	assert.Contains(t, out, "Status: Within budget, 0.00 left")

	out, err = run(t, a, "add", "--category", "Bus", "--amount", "2.5", "--time", "08:00", "--date", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Exceeded by 2.50")
	assert.Contains(t, out, "! "+reconcile.ExceededMessage)

	snap := a.engine.Snapshot()
	require.Len(t, snap.Records, 2)
	var busID int64
	for _, r := range snap.Records {
		if r.Category == "Bus" {
			busID = r.ID
		}
	}
	require.NotZero(t, busID)

	out, err = run(t, a, "edit", itoa(busID), "--category", "Train", "--amount", "1", "--time", "08:00", "--date", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Train")
	assert.Contains(t, out, "Status: Exceeded by 1.00")

	out, err = run(t, a, "delete", itoa(busID))
	require.NoError(t, err)
	assert.NotContains(t, out, "Train")
	assert.Contains(t, out, "Total spent: 100.00")

	out, err = run(t, a, "budget", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "100.00 for January 2024")

	out, err = run(t, a, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.False(t, a.engine.Snapshot().Loaded())

	_, err = run(t, a, "whoami")
	assert.True(t, errors.Is(err, core.ErrAuth))
}

func TestAddValidatesLocally(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "register", "--email", "bob@example.com", "--password", "pw")
	require.NoError(t, err)
	_, err = run(t, a, "login", "--email", "bob@example.com", "--password", "pw")
	require.NoError(t, err)

	_, err = run(t, a, "add", "--category", "Food", "--amount", "-3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)

	_, err = run(t, a, "delete", "abc")
	assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)

	_, err = run(t, a, "delete", "999")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "register", "--email", "cy@example.com", "--password", "pw")
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("pw\n"))
	cmd.SetArgs([]string{"login", "--email", "cy@example.com"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Signed in as cy@example.com")
}

type fakeExporter struct {
	got reconcile.Snapshot
}

func (f *fakeExporter) Export(_ context.Context, snap reconcile.Snapshot) error {
	f.got = snap
	return nil
}

func TestRunExport(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "register", "--email", "dee@example.com", "--password", "pw")
	require.NoError(t, err)
	_, err = run(t, a, "login", "--email", "dee@example.com", "--password", "pw")
	require.NoError(t, err)
	_, err = run(t, a, "add", "--category", "Food", "--amount", "4", "--time", "12:00", "--date", "2024-01-01")
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	require.NoError(t, a.init(&out))

	exp := &fakeExporter{}
	require.NoError(t, runExport(cmd, a, exp))
	assert.Len(t, exp.got.Records, 1)
	assert.Contains(t, out.String(), "Exported 1 records ("+export.StatusNoBudget+")")
}

func TestExportSheetsRequiresSpreadsheet(t *testing.T) {
	a := newTestApp(t)
	a.cfg.GoogleSpreadsheetID = ""
	_, err := run(t, a, "export", "sheets")
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
