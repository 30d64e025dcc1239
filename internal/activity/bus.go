package activity

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler receives events delivered by a Bus.
type Handler func(Event)

type subscriber struct {
	id int64
	fn Handler
}

// Bus is an in-process publish/subscribe channel for activity events.
// Delivery is synchronous, in registration order, on the emitting goroutine.
type Bus struct {
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	subs   []subscriber
	nextID int64
	closed bool
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log, now: time.Now}
}

// Subscribe registers h and returns a func that removes exactly that handler.
// Calling the returned func more than once is a no-op.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || h == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Emit delivers e to the handlers registered at call time. Events without a
// valid type are dropped. Handlers may emit again; no lock is held while
// they run.
func (b *Bus) Emit(e Event) {
	if !e.Type.Valid() {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	snapshot := make([]subscriber, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		b.dispatch(s, e)
	}
}

// EmitActivity is the entry point for the logging form: it fills default
// value and date before emitting.
func (b *Bus) EmitActivity(e Event) {
	if !e.Type.Valid() {
		return
	}
	b.Emit(e.Normalized(b.now()))
}

func (b *Bus) dispatch(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("activity handler panicked",
				"subscriber", s.id,
				"type", e.Type,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.fn(e)
}

// Close drops all subscribers. Later Emit and Subscribe calls do nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
