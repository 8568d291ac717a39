// Package conversation drives the per-chat dialogue that resolves a
// category for every uncategorized item in an uploaded receipt.
package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qifbot/qifbot/internal/receipt"
)

// Phase is the conversation stage for one chat.
type Phase int

// Conversation phases. Transitions are driven only by inbound chat events
// and each transition replaces the whole state atomically.
const (
	// Idle means no receipt is being processed.
	Idle Phase = iota
	// AwaitingFile means a receipt upload was requested or a previous one
	// failed to parse.
	AwaitingFile
	// SelectingCategory waits for free-text partial category input for the
	// current item.
	SelectingCategory
	// SelectingSubcategory waits for a button click supplying the full
	// category string.
	SelectingSubcategory
	// Ready has all items categorized and waits for a memo line.
	Ready
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingFile:
		return "awaiting file"
	case SelectingCategory:
		return "selecting category"
	case SelectingSubcategory:
		return "selecting subcategory"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Item is one receipt line inside a conversation. ID is a stable short
// identifier minted when the receipt is materialized; callbacks address
// items by it, never by display position.
type Item struct {
	ID   string
	Name string
	Sum  int64
}

// State is the full conversation state for one chat.
type State struct {
	Decided   map[string]string // item ID -> category
	FileName  string
	Current   string // item ID being categorized
	Query     string // partial query that produced the current keyboard
	Items     []Item // receipt order
	Remaining []string
	Date      time.Time
	TotalSum  int64
	Phase     Phase
}

// newItemID mints a stable short item identifier.
func newItemID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// materializeItems assigns stable ids to receipt items in receipt order.
func materializeItems(items []receipt.Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Item{ID: newItemID(), Name: item.Name, Sum: item.Sum}
	}
	return out
}

// item returns the conversation item with the given id.
func (s *State) item(id string) (Item, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// clone deep-copies the state so callers never share live maps or slices.
func (s State) clone() State {
	out := s
	if s.Decided != nil {
		out.Decided = make(map[string]string, len(s.Decided))
		for k, v := range s.Decided {
			out.Decided[k] = v
		}
	}
	out.Items = append([]Item(nil), s.Items...)
	out.Remaining = append([]string(nil), s.Remaining...)
	return out
}

// Store holds conversation state per chat id. Reads hand out deep copies;
// writers replace the state atomically under the store lock. A generation
// counter lets slow asynchronous work detect that the chat has moved on
// and discard its result.
type Store struct {
	states map[int64]State
	gens   map[int64]uint64
	mu     sync.Mutex
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		states: make(map[int64]State),
		gens:   make(map[int64]uint64),
	}
}

// Get returns the chat's state and its generation. Chats never seen before
// are Idle at generation zero.
func (s *Store) Get(chatID int64) (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[chatID].clone(), s.gens[chatID]
}

// Set replaces the chat's state unconditionally and bumps the generation.
func (s *Store) Set(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state.clone()
	s.gens[chatID]++
}

// SetIf replaces the chat's state only when the generation still matches
// the one observed when the work was started. A false return means the
// result is stale and must be discarded.
func (s *Store) SetIf(chatID int64, gen uint64, state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[chatID] != gen {
		return false
	}
	s.states[chatID] = state.clone()
	s.gens[chatID]++
	return true
}

// Reset puts the chat back to Idle.
func (s *Store) Reset(chatID int64) {
	s.Set(chatID, State{Phase: Idle})
}
