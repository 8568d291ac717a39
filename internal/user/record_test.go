package user

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qifbot/qifbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) *storage.SQLiteKV {
	t.Helper()

	kv, err := storage.NewSQLiteKV(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestLoad_FirstTimeUserIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	rec, err := Load(ctx, kv, 123)
	require.NoError(t, err)

	assert.Equal(t, int64(123), rec.ID)
	assert.Equal(t, 0, rec.Categories.Len())
	assert.Empty(t, rec.Accounts)
}

func TestRecord_FlushAndReload(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	rec := NewRecord(123)
	require.NoError(t, rec.Categories.Assign("Milk", "Expenses:Groceries:Dairy"))
	rec.AddAccount("Expenses:Groceries:Dairy")
	rec.AddAccount("Assets:Wallet")
	require.NoError(t, rec.Flush(ctx, kv))

	reloaded, err := Load(ctx, kv, 123)
	require.NoError(t, err)

	top, ok := reloaded.Categories.Top("Milk")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Groceries:Dairy", top)
	assert.Equal(t, []string{"Assets:Wallet", "Expenses:Groceries:Dairy"}, reloaded.AccountList())
}

func TestRecord_ExpenseAccounts(t *testing.T) {
	rec := NewRecord(1)
	rec.SetAccounts([]string{
		"Assets:Wallet",
		"Expenses:Groceries:Produce",
		"Expenses:Alcohol:Wine",
		"Income:Salary",
	})

	assert.Equal(t,
		[]string{"Expenses:Alcohol:Wine", "Expenses:Groceries:Produce"},
		rec.ExpenseAccounts())
}

func TestRecord_Clone(t *testing.T) {
	rec := NewRecord(1)
	require.NoError(t, rec.Categories.Assign("Milk", "Expenses:Groceries:Dairy"))
	rec.AddAccount("Expenses:Groceries:Dairy")

	clone := rec.Clone()
	clone.AddAccount("Expenses:Household")
	require.NoError(t, clone.Categories.Assign("Milk", "Expenses:Household"))
	require.NoError(t, clone.Categories.Assign("Milk", "Expenses:Household"))

	assert.Len(t, rec.Accounts, 1)
	top, ok := rec.Categories.Top("Milk")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Groceries:Dairy", top)
}
