package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/config"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/session"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	_, err = SetupLogger("loud", "text", &buf)
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSEBOOK_TEST_VAR=from-file\n"), 0o600))
	t.Setenv("EXPENSEBOOK_TEST_VAR", "")
	os.Unsetenv("EXPENSEBOOK_TEST_VAR")

	LoadEnvFile(path)
	assert.Equal(t, "from-file", os.Getenv("EXPENSEBOOK_TEST_VAR"))

	// Missing files are not fatal.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestOpenSessionStore(t *testing.T) {
	cfg := config.Load()

	cfg.SessionBackend = "memory"
	store, closeFn, err := OpenSessionStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, store)
	assert.NoError(t, closeFn())

	cfg.SessionBackend = "sqlite"
	cfg.SessionDBPath = filepath.Join(t.TempDir(), "session.db")
	store, closeFn, err = OpenSessionStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &session.SQLiteStore{}, store)
	assert.NoError(t, closeFn())
}

func TestAlertNotifierWithoutBroker(t *testing.T) {
	cfg := config.Load()
	cfg.AMQPURL = ""

	n, closeFn, err := AlertNotifier(cfg, log.Discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.Log{}, n)
	assert.NoError(t, closeFn())
}
