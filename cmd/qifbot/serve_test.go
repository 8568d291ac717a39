package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/qifbot/qifbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An event server that cannot bind must still run the full shutdown
// sequence: the user manager stops and the database closes cleanly
// before the command returns its error.
func TestServeCommand_EventServerFailureShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "qifbot.db")

	// Occupy a port so the event server fails to bind.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rootCmd.SetArgs([]string{
		"serve",
		"--database", dbPath,
		"--gateway", "http://127.0.0.1:1",
		"--listen", listener.Addr().String(),
		"--monitoring-listen", "127.0.0.1:0",
	})
	err = rootCmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event server failed")
	assert.NoError(t, ctx.Err(), "shutdown must complete without hanging")

	// The database is usable again immediately.
	kv, err := storage.NewSQLiteKV(dbPath)
	require.NoError(t, err)
	require.NoError(t, kv.Close())
}

func TestServeCommand_RequiresGateway(t *testing.T) {
	rootCmd.SetArgs([]string{
		"serve",
		"--database", filepath.Join(t.TempDir(), "qifbot.db"),
		"--gateway", "",
	})
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing configuration")
}
