package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qifbot/qifbot/internal/category"
)

var testAccounts = []string{
	"Expenses:Alcohol:Wine",
	"Expenses:Groceries:Dairy",
	"Expenses:Groceries:Produce",
}

func newTestPrompter(t *testing.T, input string, store *category.Store) (*Prompter, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	return NewPrompter(strings.NewReader(input), &out, store, testAccounts), &out
}

func TestPrompter_EmptyInputAcceptsSuggestion(t *testing.T) {
	store := category.NewStore()
	require.NoError(t, store.Assign("Milk", "Expenses:Groceries:Dairy"))

	p, _ := newTestPrompter(t, "\n", store)

	got, err := p.Resolve(context.Background(), "Milk")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Groceries:Dairy", got)
}

func TestPrompter_SingleMatchWins(t *testing.T) {
	p, _ := newTestPrompter(t, "wine\n", category.NewStore())

	got, err := p.Resolve(context.Background(), "Wine")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Alcohol:Wine", got)
}

func TestPrompter_AmbiguousInputReprompts(t *testing.T) {
	p, out := newTestPrompter(t, "groc\ngroc:da\n", category.NewStore())

	got, err := p.Resolve(context.Background(), "Cheese")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Groceries:Dairy", got)
	assert.Contains(t, out.String(), "Refine your input")
}

func TestPrompter_UnmatchedInputIsLiteral(t *testing.T) {
	p, _ := newTestPrompter(t, "Expenses:Pets\n", category.NewStore())

	got, err := p.Resolve(context.Background(), "Dog food")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Pets", got)
}

func TestPrompter_EOFWithSuggestion(t *testing.T) {
	store := category.NewStore()
	require.NoError(t, store.Assign("Milk", "Expenses:Groceries:Dairy"))

	p, _ := newTestPrompter(t, "", store)

	got, err := p.Resolve(context.Background(), "Milk")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Groceries:Dairy", got)
}

func TestPrompter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newTestPrompter(t, "wine\n", category.NewStore())

	_, err := p.Resolve(ctx, "Wine")
	assert.ErrorIs(t, err, context.Canceled)
}
