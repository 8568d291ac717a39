// Package user holds per-user durable state and the single-writer manager
// that serializes all access to it.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/qifbot/qifbot/internal/category"
	"github.com/qifbot/qifbot/internal/common"
	"github.com/qifbot/qifbot/internal/storage"
)

// Storage keys for the per-user record.
const (
	keyCategoryMap = "catmap"
	keyAccounts    = "accounts"
)

// expensePrefix marks the accounts usable as purchase categories.
const expensePrefix = "Expenses:"

// Record is the durable unit of per-user state: learned category
// statistics plus the set of known accounts.
type Record struct {
	Categories *category.Store
	Accounts   map[string]struct{}
	ID         int64
}

// NewRecord creates an empty record for the given user.
func NewRecord(id int64) *Record {
	return &Record{
		ID:         id,
		Categories: category.NewStore(),
		Accounts:   make(map[string]struct{}),
	}
}

// Load reads the record for id from kv. Missing keys default to empty
// state so first-time users start with a fresh record.
func Load(ctx context.Context, kv storage.KV, id int64) (*Record, error) {
	rec := NewRecord(id)

	data, err := kv.Get(ctx, id, keyCategoryMap)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load category map for user %d: %w", id, err)
	default:
		if err := json.Unmarshal(data, rec.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode category map for user %d: %w", id, err)
		}
	}

	data, err = kv.Get(ctx, id, keyAccounts)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load accounts for user %d: %w", id, err)
	default:
		var accounts []string
		if err := json.Unmarshal(data, &accounts); err != nil {
			return nil, fmt.Errorf("failed to decode accounts for user %d: %w", id, err)
		}
		for _, acc := range accounts {
			rec.Accounts[acc] = struct{}{}
		}
	}

	return rec, nil
}

// Flush writes both record keys back to kv.
func (r *Record) Flush(ctx context.Context, kv storage.KV) error {
	catmap, err := json.Marshal(r.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode category map for user %d: %w", r.ID, err)
	}
	if err := kv.Set(ctx, r.ID, keyCategoryMap, catmap); err != nil {
		return err
	}

	accounts, err := json.Marshal(r.AccountList())
	if err != nil {
		return fmt.Errorf("failed to encode accounts for user %d: %w", r.ID, err)
	}
	return kv.Set(ctx, r.ID, keyAccounts, accounts)
}

// AddAccount adds name to the known account set.
func (r *Record) AddAccount(name string) {
	r.Accounts[name] = struct{}{}
}

// SetAccounts replaces the account set.
func (r *Record) SetAccounts(accounts []string) {
	r.Accounts = make(map[string]struct{}, len(accounts))
	for _, acc := range accounts {
		r.Accounts[acc] = struct{}{}
	}
}

// AccountList returns all known accounts, sorted.
func (r *Record) AccountList() []string {
	accounts := make([]string, 0, len(r.Accounts))
	for acc := range r.Accounts {
		accounts = append(accounts, acc)
	}
	sort.Strings(accounts)
	return accounts
}

// ExpenseAccounts returns the Expenses:-prefixed accounts, sorted. Only
// these make sense as purchase categories.
func (r *Record) ExpenseAccounts() []string {
	var accounts []string
	for acc := range r.Accounts {
		if strings.HasPrefix(acc, expensePrefix) {
			accounts = append(accounts, acc)
		}
	}
	sort.Strings(accounts)
	return accounts
}

// Clone returns a deep copy of the record. The manager hands out clones so
// no caller ever shares the live copy.
func (r *Record) Clone() *Record {
	clone := NewRecord(r.ID)
	clone.Categories = r.Categories.Clone()
	for acc := range r.Accounts {
		clone.Accounts[acc] = struct{}{}
	}
	return clone
}
