package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/qifbot/qifbot/internal/storage"
	"github.com/qifbot/qifbot/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReceipt = `{
	"dateTime": "2020-06-19T17:12:00",
	"totalSum": 1700,
	"items": [
		{"name": "Milk", "sum": 200},
		{"name": "Wine", "sum": 1500}
	]
}`

func TestConvertCommand_Automatic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "qifbot.db")

	// Seed learned categories so the non-interactive path can resolve
	// every item.
	kv, err := storage.NewSQLiteKV(dbPath)
	require.NoError(t, err)
	rec, err := user.Load(ctx, kv, 9)
	require.NoError(t, err)
	require.NoError(t, rec.Categories.Assign("Milk", "Expenses:Groceries:Dairy"))
	require.NoError(t, rec.Categories.Assign("Wine", "Expenses:Alcohol:Wine"))
	require.NoError(t, rec.Flush(ctx, kv))
	require.NoError(t, kv.Close())

	receiptPath := filepath.Join(dir, "receipt.json")
	require.NoError(t, os.WriteFile(receiptPath, []byte(testReceipt), 0600))
	outPath := filepath.Join(dir, "out.qif")

	rootCmd.SetArgs([]string{
		"convert", receiptPath,
		"--database", dbPath,
		"--user", "9",
		"--memo", "Supermarket",
		"--output", outPath,
	})
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	doc, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "!Account\nNWallet\nTCash\n^\n")
	assert.Contains(t, string(doc), "D2020-06-19\nT-17.00\nMSupermarket\n")
	assert.Contains(t, string(doc), "SExpenses:Groceries:Dairy\nEMilk\n$-2.00\n")
	assert.Contains(t, string(doc), "SExpenses:Alcohol:Wine\nEWine\n$-15.00\n")

	// The run itself counts as another assignment for each item.
	kv, err = storage.NewSQLiteKV(dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, kv.Close())
	}()
	rec, err = user.Load(ctx, kv, 9)
	require.NoError(t, err)
	top, ok := rec.Categories.Top("Milk")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Groceries:Dairy", top)
}

func TestConvertCommand_UnknownItemFails(t *testing.T) {
	dir := t.TempDir()
	receiptPath := filepath.Join(dir, "receipt.json")
	require.NoError(t, os.WriteFile(receiptPath, []byte(testReceipt), 0600))

	rootCmd.SetArgs([]string{
		"convert", receiptPath,
		"--database", filepath.Join(dir, "qifbot.db"),
		"--user", "1",
	})
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Milk")
	assert.Contains(t, err.Error(), "Wine")
}
