package chat

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher fans inbound events out to per-chat worker goroutines.
// Events for the same chat are handled in arrival order; different chats
// proceed independently.
type Dispatcher struct {
	handler  Handler
	events   chan Event
	queueLen int
}

// queueDefault is the per-chat event buffer; a chat producing events
// faster than they are handled blocks the intake loop, not other chats.
const queueDefault = 16

// NewDispatcher creates a dispatcher delivering events to handler.
func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{
		handler:  handler,
		events:   make(chan Event, queueDefault),
		queueLen: queueDefault,
	}
}

// Submit queues an inbound event for delivery. It blocks only when the
// intake queue is full.
func (d *Dispatcher) Submit(ctx context.Context, event Event) error {
	select {
	case d.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle reports the liveness of a running dispatcher. It replaces any
// process-global "is running" flag: the component that started the
// dispatcher owns the handle and decides who may query or stop it.
type Handle struct {
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Done is closed once the dispatcher and all per-chat workers have exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Running reports whether the dispatcher is still serving events.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Stop drains already-submitted events, shuts the dispatcher down and
// waits for it. Safe to call more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Run starts the dispatch loop and returns a Handle for it. Canceling ctx
// stops the dispatcher without draining.
func (d *Dispatcher) Run(ctx context.Context) *Handle {
	handle := &Handle{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(handle.done)

		var wg sync.WaitGroup
		chats := make(map[int64]chan Event)

		defer func() {
			for _, queue := range chats {
				close(queue)
			}
			wg.Wait()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-handle.quit:
				d.drain(ctx, chats, &wg)
				return
			case event := <-d.events:
				d.route(ctx, chats, &wg, event)
			}
		}
	}()

	return handle
}

// drain routes whatever is already buffered in the intake queue.
func (d *Dispatcher) drain(ctx context.Context, chats map[int64]chan Event, wg *sync.WaitGroup) {
	for {
		select {
		case event := <-d.events:
			d.route(ctx, chats, wg, event)
		default:
			return
		}
	}
}

// route hands an event to its chat's worker, starting one on first use.
func (d *Dispatcher) route(ctx context.Context, chats map[int64]chan Event, wg *sync.WaitGroup, event Event) {
	queue, ok := chats[event.Chat()]
	if !ok {
		queue = make(chan Event, d.queueLen)
		chats[event.Chat()] = queue
		wg.Add(1)
		go d.worker(ctx, event.Chat(), queue, wg)
	}

	select {
	case queue <- event:
	case <-ctx.Done():
	}
}

// worker drains one chat's queue, invoking the handler serially so state
// transitions for a chat never interleave.
func (d *Dispatcher) worker(ctx context.Context, chatID int64, queue <-chan Event, wg *sync.WaitGroup) {
	defer wg.Done()

	for event := range queue {
		var err error
		switch ev := event.(type) {
		case TextEvent:
			err = d.handler.HandleText(ctx, ev)
		case FileEvent:
			err = d.handler.HandleFile(ctx, ev)
		case CallbackEvent:
			err = d.handler.HandleCallback(ctx, ev)
		default:
			slog.Warn("Dropping event of unknown type", "chat_id", chatID)
		}
		if err != nil {
			slog.Error("Event handler failed", "chat_id", chatID, "error", err)
		}
	}
}
