package category

import "context"

// Categorizer resolves the category for a single receipt item. Automatic
// implementations answer from learned data; interactive ones may ask the
// user. An empty category with a nil error means "no answer known".
type Categorizer interface {
	Resolve(ctx context.Context, item string) (string, error)
}

// Automatic resolves items to their most-used category and leaves unknown
// items uncategorized.
type Automatic struct {
	store *Store
}

// NewAutomatic creates a categorizer answering from the given store.
func NewAutomatic(store *Store) *Automatic {
	return &Automatic{store: store}
}

// Resolve returns the top-ranked category for item, or empty if the item
// has never been categorized.
func (a *Automatic) Resolve(_ context.Context, item string) (string, error) {
	top, ok := a.store.Top(item)
	if !ok {
		return "", nil
	}
	return top, nil
}
