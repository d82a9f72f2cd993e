package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSE_TRACKER_TEST_KEY=from-dotenv\n"), 0o600))
	t.Setenv("EXPENSE_TRACKER_TEST_KEY", "")
	os.Unsetenv("EXPENSE_TRACKER_TEST_KEY")

	LoadEnvFile(path)
	assert.Equal(t, "from-dotenv", os.Getenv("EXPENSE_TRACKER_TEST_KEY"))

	assert.NotPanics(t, func() { LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")) })
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSE_TRACKER_TEST_KEY=from-dotenv\n"), 0o600))
	t.Setenv("EXPENSE_TRACKER_TEST_KEY", "from-env")

	LoadEnvFile(path)
	assert.Equal(t, "from-env", os.Getenv("EXPENSE_TRACKER_TEST_KEY"))
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)

	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, logger.Logger, slog.Default())
}

func TestGracefulShutdownOnSignal(t *testing.T) {
	ctx, cancel := GracefulShutdown(log.Discard())
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestShutdownContext(t *testing.T) {
	ctx, cancel := ShutdownContext()
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(ShutdownTimeout), deadline, time.Second)
}
