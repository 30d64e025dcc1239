package streak

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/store"
)

const StorageKey = "streak_state_v1"

// State is the streak state machine's only variables.
type State struct {
	LastDate string `json:"lastDate,omitempty"`
	Current  int    `json:"current"`
}

// Tracker derives a consecutive-day streak from activity dates.
type Tracker struct {
	kv  store.KV
	log *slog.Logger

	mu    sync.Mutex
	state State
}

func NewTracker(kv store.KV, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{kv: kv, log: log}
	t.load()
	return t
}

func (t *Tracker) load() {
	raw, ok, err := t.kv.GetItem(StorageKey)
	if err != nil {
		t.log.Warn("streak read failed, starting fresh", "error", err)
		return
	}
	if !ok {
		return
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.log.Warn("streak data unreadable, starting fresh", "key", StorageKey, "error", err)
		return
	}
	if _, err := parseDate(s.LastDate); err != nil || s.Current < 1 {
		if s.LastDate != "" || s.Current != 0 {
			t.log.Warn("streak data inconsistent, starting fresh", "lastDate", s.LastDate, "current", s.Current)
		}
		return
	}
	t.state = s
}

func (t *Tracker) persist() {
	data, err := json.Marshal(t.state)
	if err != nil {
		t.log.Warn("streak encode failed", "error", err)
		return
	}
	if err := t.kv.SetItem(StorageKey, string(data)); err != nil {
		t.log.Warn("streak persist failed", "error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(activity.DateLayout, s)
}

// Next is the pure transition function.
//
//	no last date          -> (d, 1)
//	d == last             -> unchanged
//	d == last + 1 day     -> (d, current+1)
//	d before last         -> unchanged (late events never regress a streak)
//	gap of 2 or more days -> (d, 1)
func Next(s State, d time.Time) State {
	day := d.Format(activity.DateLayout)
	last, err := parseDate(s.LastDate)
	if s.LastDate == "" || err != nil {
		return State{LastDate: day, Current: 1}
	}

	cur := civil(d)
	switch {
	case cur.Equal(last):
		return s
	case cur.Before(last):
		return s
	case cur.Equal(last.AddDate(0, 0, 1)):
		return State{LastDate: day, Current: s.Current + 1}
	default:
		return State{LastDate: day, Current: 1}
	}
}

// civil drops the clock and zone so day arithmetic ignores DST.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Advance feeds a YYYY-MM-DD date into the tracker and reports whether the
// streak count changed. An unparseable date leaves the state alone.
func (t *Tracker) Advance(date string) (State, bool) {
	d, err := parseDate(date)
	if err != nil {
		t.log.Warn("streak ignoring bad date", "date", date)
		return t.State(), false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state
	next := Next(prev, d)
	if next != prev {
		t.state = next
		t.persist()
	}
	return next, next.Current != prev.Current
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset clears the streak.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
	if err := t.kv.RemoveItem(StorageKey); err != nil {
		t.log.Warn("streak reset failed", "error", err)
	}
}
