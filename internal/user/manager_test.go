package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/qifbot/qifbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, kv storage.KV) *Manager {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(kv)
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m
}

func TestManager_GetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newTestKV(t))

	require.NoError(t, m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy"))

	snapshot, err := m.Get(ctx, 1)
	require.NoError(t, err)

	// Mutating the snapshot must not affect the authoritative copy.
	require.NoError(t, snapshot.Categories.Assign("Milk", "Expenses:Household"))
	require.NoError(t, snapshot.Categories.Assign("Milk", "Expenses:Household"))

	fresh, err := m.Get(ctx, 1)
	require.NoError(t, err)
	top, ok := fresh.Categories.Top("Milk")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Groceries:Dairy", top)
}

func TestManager_AssignPersists(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	m := newTestManager(t, kv)

	require.NoError(t, m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy"))

	// Bypass the manager and read storage directly: the mutation must be
	// durable as soon as the request completes.
	rec, err := Load(ctx, kv, 1)
	require.NoError(t, err)
	top, ok := rec.Categories.Top("Milk")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Groceries:Dairy", top)
}

func TestManager_AssignEmptyCategoryFails(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newTestKV(t))

	require.Error(t, m.Assign(ctx, 1, "Milk", ""))

	// The failed request must not poison the loop.
	require.NoError(t, m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy"))
}

func TestManager_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newTestKV(t))

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 4; userID++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				cat := fmt.Sprintf("Expenses:User%d", id)
				assert.NoError(t, m.Assign(ctx, id, "Milk", cat))
			}
		}(userID)
	}
	wg.Wait()

	for userID := int64(1); userID <= 4; userID++ {
		rec, err := m.Get(ctx, userID)
		require.NoError(t, err)

		stats := rec.Categories.Stats("Milk")
		require.Len(t, stats, 1, "user %d", userID)
		assert.Equal(t, fmt.Sprintf("Expenses:User%d", userID), stats[0].Category)
		assert.Equal(t, int64(25), stats[0].Hits)
	}
}

func TestManager_SameUserMutationsAllApply(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newTestKV(t))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy"))
			}
		}()
	}
	wg.Wait()

	rec, err := m.Get(ctx, 1)
	require.NoError(t, err)
	stats := rec.Categories.Stats("Milk")
	require.Len(t, stats, 1)
	assert.Equal(t, int64(40), stats[0].Hits, "no update may be lost")
}

func TestManager_AddAccount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newTestKV(t))

	require.NoError(t, m.AddAccount(ctx, 1, "Expenses:Groceries:Dairy"))
	require.NoError(t, m.AddAccount(ctx, 1, "Assets:Wallet"))
	assert.Error(t, m.AddAccount(ctx, 1, ""))

	accounts, err := m.ExpenseAccounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expenses:Groceries:Dairy"}, accounts)
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	m := newTestManager(t, kv)

	require.NoError(t, m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy"))
	require.NoError(t, m.Delete(ctx, 1))

	rec, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Categories.Len())
}

func TestManager_ShutdownFlushesCache(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	mgrCtx, cancel := context.WithCancel(context.Background())
	m := NewManager(kv)
	m.Start(mgrCtx)

	require.NoError(t, m.AddAccount(ctx, 5, "Expenses:Books"))

	cancel()
	<-m.Done()

	rec, err := Load(ctx, kv, 5)
	require.NoError(t, err)
	assert.Contains(t, rec.Accounts, "Expenses:Books")
}

// failingKV fails every write after the first n, exercising the rule that
// a storage error fails the request but not the loop.
type failingKV struct {
	storage.KV
	failSets bool
}

func (f *failingKV) Set(ctx context.Context, userID int64, key string, value []byte) error {
	if f.failSets {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, userID, key, value)
}

func TestManager_StorageErrorDoesNotKillLoop(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KV: newTestKV(t), failSets: true}
	m := newTestManager(t, kv)

	err := m.Assign(ctx, 1, "Milk", "Expenses:Groceries:Dairy")
	require.Error(t, err)

	kv.failSets = false
	require.NoError(t, m.Assign(ctx, 2, "Wine", "Expenses:Alcohol:Wine"))

	rec, err := m.Get(ctx, 2)
	require.NoError(t, err)
	top, ok := rec.Categories.Top("Wine")
	require.True(t, ok)
	assert.Equal(t, "Expenses:Alcohol:Wine", top)
}
