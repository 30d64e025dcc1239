package outbox

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/store"
)

const StorageKey = "pending_activities_v1"

// Queue holds activities that could not be pushed to the server yet.
type Queue struct {
	kv  store.KV
	log *slog.Logger
	mu  sync.Mutex
}

func New(kv store.KV, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{kv: kv, log: log}
}

func (q *Queue) read() []activity.Event {
	raw, ok, err := q.kv.GetItem(StorageKey)
	if err != nil {
		q.log.Warn("outbox read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var events []activity.Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		q.log.Warn("outbox data unreadable, ignoring", "key", StorageKey, "error", err)
		return nil
	}
	return events
}

func (q *Queue) write(events []activity.Event) error {
	if len(events) == 0 {
		return q.kv.RemoveItem(StorageKey)
	}
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return q.kv.SetItem(StorageKey, string(data))
}

// Add appends e to the queue.
func (q *Queue) Add(e activity.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(append(q.read(), e))
}

// Pending returns the queued events, oldest first.
func (q *Queue) Pending() []activity.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read()
}

func (q *Queue) Len() int {
	return len(q.Pending())
}

// Replace swaps the whole queue, typically for the events that failed a flush.
func (q *Queue) Replace(events []activity.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(events)
}

// Settle drops the first sent events, which a flush has dealt with, and puts
// failed back at the head. Events added since the flush read the queue stay
// behind them.
func (q *Queue) Settle(sent int, failed []activity.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cur := q.read()
	sent = min(max(sent, 0), len(cur))
	next := make([]activity.Event, 0, len(failed)+len(cur)-sent)
	next = append(next, failed...)
	next = append(next, cur[sent:]...)
	return q.write(next)
}

func (q *Queue) Clear() error {
	return q.Replace(nil)
}
