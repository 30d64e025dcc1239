package progress

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dmeshram/greenloop/internal/store"
)

// StorageKey is versioned so an older layout is never read as the current one.
const StorageKey = "ach_progress_v2"

const schemaVersion = 2

// Phase records who wrote an entry last.
type Phase string

const (
	PhaseOptimistic Phase = "optimistic"
	PhaseConfirmed  Phase = "confirmed"
)

// Entry is the accumulator and unlock marker for one goal.
type Entry struct {
	GoalID     string     `json:"goalId"`
	Progress   float64    `json:"progress"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
	Phase      Phase      `json:"phase,omitempty"`
}

func (e Entry) Unlocked() bool { return e.UnlockedAt != nil }

// ServerRow is one row of authoritative progress.
type ServerRow struct {
	ID         string
	Progress   float64
	UnlockedAt *time.Time
}

// Thresholds resolves the required amount of a goal. The catalog satisfies it.
type Thresholds interface {
	Required(goalID string) (float64, bool)
}

type persisted struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Store keeps per-goal progress, persisting after every mutation.
type Store struct {
	kv    store.KV
	goals Thresholds
	log   *slog.Logger
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for unlock timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore loads persisted progress. Unreadable data is discarded and the
// store starts empty.
func NewStore(kv store.KV, goals Thresholds, log *slog.Logger, opts ...Option) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		kv:      kv,
		goals:   goals,
		log:     log,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, o := range opts {
		o(s)
	}
	s.load()
	return s
}

func (s *Store) load() {
	raw, ok, err := s.kv.GetItem(StorageKey)
	if err != nil {
		s.log.Warn("progress read failed, starting empty", "error", err)
		return
	}
	if !ok {
		return
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Version != schemaVersion {
		s.log.Warn("progress data unreadable, starting empty", "key", StorageKey, "error", err, "version", p.Version)
		return
	}
	for id, e := range p.Entries {
		if id == "" || e.Progress < 0 || math.IsNaN(e.Progress) {
			continue
		}
		e.GoalID = id
		s.entries[id] = e
	}
}

// persist must be called with mu held.
func (s *Store) persist() {
	data, err := json.Marshal(persisted{Version: schemaVersion, Entries: s.entries})
	if err != nil {
		s.log.Warn("progress encode failed", "error", err)
		return
	}
	if err := s.kv.SetItem(StorageKey, string(data)); err != nil {
		s.log.Warn("progress persist failed", "error", err)
	}
}

func (s *Store) required(id string) float64 {
	if s.goals == nil {
		return math.Inf(1)
	}
	req, ok := s.goals.Required(id)
	if !ok || req <= 0 {
		return math.Inf(1)
	}
	return req
}

// ratchet sets UnlockedAt the first time progress meets the threshold.
func (s *Store) ratchet(e Entry) Entry {
	if e.UnlockedAt == nil && e.Progress >= s.required(e.GoalID) {
		t := s.now().UTC()
		e.UnlockedAt = &t
	}
	return e
}

// Get returns the entry for id, or a zero entry.
func (s *Store) Get(id string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	return Entry{GoalID: id}
}

func sanitize(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Increment adds by to the goal's progress. Negative or NaN amounts are
// treated as 0, so progress never decreases.
func (s *Store) Increment(id string, by float64) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[id]
	e.GoalID = id
	e.Progress += sanitize(by)
	e.Phase = PhaseOptimistic
	e = s.ratchet(e)
	s.entries[id] = e
	s.persist()
	return e
}

// SetProgress writes value directly. The unlock rule applies as for Increment,
// and an existing unlock is kept.
func (s *Store) SetProgress(id string, value float64) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[id]
	e.GoalID = id
	e.Progress = sanitize(value)
	e.Phase = PhaseOptimistic
	e = s.ratchet(e)
	s.entries[id] = e
	s.persist()
	return e
}

// Reset forgets a goal's progress and unlock.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	s.persist()
}

// ResetAll clears every entry.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	s.persist()
}

// OverlayFromServer replaces progress for every id in rows and marks those
// entries confirmed. The server's unlock time wins when it sends one; a null
// from the server never clears a local unlock. Ids not in rows are untouched.
func (s *Store) OverlayFromServer(rows []ServerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		e := s.entries[r.ID]
		e.GoalID = r.ID
		e.Progress = sanitize(r.Progress)
		e.Phase = PhaseConfirmed
		if r.UnlockedAt != nil {
			t := r.UnlockedAt.UTC()
			e.UnlockedAt = &t
		}
		e = s.ratchet(e)
		s.entries[r.ID] = e
	}
	s.persist()
}

// Snapshot returns a copy of every entry keyed by goal id.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// IDs returns the goal ids with an entry, sorted.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Percent is progress over required, clamped to [0, 100]. A non-positive
// required counts as complete.
func Percent(progress, required float64) float64 {
	if required <= 0 {
		return 100
	}
	p := math.Round(progress / required * 100)
	return math.Max(0, math.Min(100, p))
}
