package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qifbot/qifbot/internal/storage"
)

// Manager is the single writer of user records. One goroutine owns the
// cached records and serves requests in arrival order, so concurrent
// conversations never race on the same user's state.
type Manager struct {
	kv       storage.KV
	requests chan request
	stopped  chan struct{}
}

// request is one unit of work for the manager loop. run executes against
// the live record; mutate requests are flushed before the reply is sent.
type request struct {
	ctx    context.Context
	run    func(rec *Record) (any, error)
	reply  chan response
	userID int64
	mutate bool
	drop   bool
}

type response struct {
	value any
	err   error
}

// NewManager creates a manager persisting records to kv. Start must be
// called before any requests are served.
func NewManager(kv storage.KV) *Manager {
	return &Manager{
		kv:       kv,
		requests: make(chan request, 32),
		stopped:  make(chan struct{}),
	}
}

// Start runs the manager loop until ctx is canceled. All cached records
// are flushed on the way out.
func (m *Manager) Start(ctx context.Context) {
	go m.loop(ctx)
}

// Done is closed once the manager loop has exited and flushed its cache.
func (m *Manager) Done() <-chan struct{} {
	return m.stopped
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.stopped)

	records := make(map[int64]*Record)

	for {
		select {
		case <-ctx.Done():
			m.flushAll(records)
			return
		case req := <-m.requests:
			m.serve(records, req)
		}
	}
}

// serve handles one request. A failing request is answered with its error
// and never terminates the loop.
func (m *Manager) serve(records map[int64]*Record, req request) {
	rec, ok := records[req.userID]
	if !ok {
		loaded, err := Load(req.ctx, m.kv, req.userID)
		if err != nil {
			slog.Error("Failed to load user record", "user_id", req.userID, "error", err)
			m.respond(req, response{err: err})
			return
		}
		rec = loaded
		records[req.userID] = rec
	}

	value, err := req.run(rec)
	if err == nil && req.mutate {
		if flushErr := rec.Flush(req.ctx, m.kv); flushErr != nil {
			slog.Error("Failed to persist user record", "user_id", req.userID, "error", flushErr)
			err = fmt.Errorf("failed to persist user %d: %w", req.userID, flushErr)
		}
	}
	if err == nil && req.drop {
		delete(records, req.userID)
	}

	m.respond(req, response{value: value, err: err})
}

// respond never blocks: if the requester is gone the reply is dropped.
func (m *Manager) respond(req request, resp response) {
	select {
	case req.reply <- resp:
	default:
	}
}

func (m *Manager) flushAll(records map[int64]*Record) {
	for id, rec := range records {
		if err := rec.Flush(context.Background(), m.kv); err != nil {
			slog.Error("Failed to flush user record on shutdown", "user_id", id, "error", err)
		}
	}
}

// send submits a request and waits for the reply.
func (m *Manager) send(ctx context.Context, req request) (any, error) {
	req.ctx = ctx
	req.reply = make(chan response, 1)

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopped:
		return nil, fmt.Errorf("user manager is not running")
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopped:
		return nil, fmt.Errorf("user manager stopped before replying")
	}
}

// Get returns a snapshot of the user's record. The snapshot is a deep copy;
// mutations must go back through Assign, AddAccount or SetAccounts.
func (m *Manager) Get(ctx context.Context, userID int64) (*Record, error) {
	value, err := m.send(ctx, request{
		userID: userID,
		run: func(rec *Record) (any, error) {
			return rec.Clone(), nil
		},
	})
	if err != nil {
		return nil, err
	}
	return value.(*Record), nil
}

// Assign files item under category in the user's statistics and persists
// the record.
func (m *Manager) Assign(ctx context.Context, userID int64, item, cat string) error {
	_, err := m.send(ctx, request{
		userID: userID,
		mutate: true,
		run: func(rec *Record) (any, error) {
			return nil, rec.Categories.Assign(item, cat)
		},
	})
	return err
}

// AddAccount appends name to the user's account set and persists it.
func (m *Manager) AddAccount(ctx context.Context, userID int64, name string) error {
	if name == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	_, err := m.send(ctx, request{
		userID: userID,
		mutate: true,
		run: func(rec *Record) (any, error) {
			rec.AddAccount(name)
			return nil, nil
		},
	})
	return err
}

// SetAccounts replaces the user's account set and persists it.
func (m *Manager) SetAccounts(ctx context.Context, userID int64, accounts []string) error {
	_, err := m.send(ctx, request{
		userID: userID,
		mutate: true,
		run: func(rec *Record) (any, error) {
			rec.SetAccounts(accounts)
			return nil, nil
		},
	})
	return err
}

// ExpenseAccounts returns the user's Expenses:-prefixed accounts, sorted.
func (m *Manager) ExpenseAccounts(ctx context.Context, userID int64) ([]string, error) {
	value, err := m.send(ctx, request{
		userID: userID,
		run: func(rec *Record) (any, error) {
			return rec.ExpenseAccounts(), nil
		},
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

// Delete removes the user from storage and evicts the cached record.
func (m *Manager) Delete(ctx context.Context, userID int64) error {
	_, err := m.send(ctx, request{
		userID: userID,
		drop:   true,
		run: func(_ *Record) (any, error) {
			return nil, m.kv.Delete(ctx, userID)
		},
	})
	return err
}
