package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/progress"
	"github.com/dmeshram/greenloop/internal/store"
	"github.com/dmeshram/greenloop/internal/streak"
)

type Progress interface {
	Increment(id string, by float64) progress.Entry
	SetProgress(id string, value float64) progress.Entry
	OverlayFromServer(rows []progress.ServerRow)
}

type Streak interface {
	Advance(date string) (streak.State, bool)
}

// Remote is the slice of the REST API the reconciler needs; *api.Client
// satisfies it.
type Remote interface {
	Achievements(ctx context.Context) ([]progress.ServerRow, error)
	LogActivity(ctx context.Context, e activity.Event) (*api.LoggedActivity, error)
}

type Session interface {
	Authenticated() bool
}

type Outbox interface {
	Add(e activity.Event) error
	Pending() []activity.Event
	Settle(sent int, failed []activity.Event) error
}

// History records activities locally; *store.Store satisfies it.
type History interface {
	RecordActivity(typ string, value float64, unit, date string) (*store.LoggedActivity, error)
}

// Deps wires a Reconciler. Remote, Session, Outbox, History and OnChange are
// optional.
type Deps struct {
	Bus          *activity.Bus
	Progress     Progress
	Streak       Streak
	StreakGoalID string
	Rules        Rules

	Remote  Remote
	Session Session
	Outbox  Outbox
	History History

	// OnChange runs after local or server state was applied. It may be
	// called from the emitting goroutine or from a background refresh.
	OnChange func()

	Log *slog.Logger
	Now func() time.Time
}

// Reconciler turns activity events into goal progress and keeps the local
// optimistic view in step with the server.
type Reconciler struct {
	d Deps

	mu      sync.Mutex
	gen     uint64
	running bool
	stopped bool
	unsub   func()
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// flushMu serialises queue replays so an event is never pushed twice.
	flushMu sync.Mutex
}

func New(d Deps) *Reconciler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rules == nil {
		d.Rules = DefaultRules()
	}
	return &Reconciler{d: d}
}

// Start subscribes to the bus. Calling it while already running is a no-op.
// Background work is bound to ctx and to the next Close.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	r.running = true
	r.stopped = false
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.unsub = r.d.Bus.Subscribe(r.handle)
	r.mu.Unlock()

	r.d.Log.Debug("reconciler started", "generation", gen)
	if r.authenticated() && r.d.Outbox != nil && len(r.d.Outbox.Pending()) > 0 {
		r.spawn(func(ctx context.Context, gen uint64) {
			if err := r.flush(ctx, gen); err != nil {
				r.d.Log.Warn("replaying pending activities failed", "error", err)
			}
		})
	}
}

// Close unsubscribes, cancels in-flight work and waits for it. Nothing is
// applied once Close returns. It is safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.stopped = true
	r.unsub()
	r.unsub = nil
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.d.Log.Debug("reconciler closed")
}

func (r *Reconciler) authenticated() bool {
	return r.d.Session != nil && r.d.Session.Authenticated()
}

// spawn runs fn in the background unless the reconciler is closed.
func (r *Reconciler) spawn(fn func(ctx context.Context, gen uint64)) bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	ctx, gen := r.ctx, r.gen
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn(ctx, gen)
	}()
	return true
}

// guard runs apply only while the generation that started the work is still
// live.
func (r *Reconciler) guard(ctx context.Context, gen uint64, apply func()) bool {
	r.mu.Lock()
	if ctx.Err() != nil || r.gen != gen || r.stopped {
		r.mu.Unlock()
		return false
	}
	apply()
	r.mu.Unlock()

	r.changed()
	return true
}

func (r *Reconciler) changed() {
	if r.d.OnChange != nil {
		r.d.OnChange()
	}
}

func (r *Reconciler) handle(e activity.Event) {
	r.mu.Lock()
	live := r.running
	r.mu.Unlock()
	if !live {
		// Delivered from a snapshot taken before Close unsubscribed us.
		return
	}

	e = e.Normalized(r.d.Now())
	r.Apply(e)

	if r.d.History != nil {
		if _, err := r.d.History.RecordActivity(string(e.Type), e.Value, e.Unit, e.Date); err != nil {
			r.d.Log.Warn("recording activity failed", "type", e.Type, "error", err)
		}
	}
	r.changed()

	if r.d.Remote == nil {
		return
	}
	if !r.authenticated() {
		// Held until the next signed-in flush.
		r.queue(e)
		return
	}
	pushed := r.spawn(func(ctx context.Context, gen uint64) {
		if _, err := r.d.Remote.LogActivity(ctx, e); err != nil {
			// The server has not seen e yet, so its rows would undo the
			// optimistic update.
			r.d.Log.Warn("pushing activity failed, queued for later", "type", e.Type, "error", err)
			r.queue(e)
			return
		}
		if err := r.refresh(ctx, gen); err != nil {
			r.d.Log.Warn("progress refresh failed", "error", err)
		}
	})
	if !pushed {
		r.queue(e)
	}
}

func (r *Reconciler) queue(e activity.Event) {
	if r.d.Outbox == nil {
		return
	}
	if err := r.d.Outbox.Add(e); err != nil {
		r.d.Log.Warn("queueing activity failed", "error", err)
	}
}

// Apply updates local progress for one event and returns the touched
// entries. It never talks to the network.
func (r *Reconciler) Apply(e activity.Event) []progress.Entry {
	var touched []progress.Entry
	for _, rule := range r.d.Rules.For(e) {
		touched = append(touched, r.d.Progress.Increment(rule.GoalID, rule.delta(e)))
	}

	if r.d.Streak != nil && r.d.StreakGoalID != "" {
		if st, changed := r.d.Streak.Advance(e.Date); changed {
			touched = append(touched, r.d.Progress.SetProgress(r.d.StreakGoalID, float64(st.Current)))
		}
	}

	r.d.Log.Debug("activity applied", "type", e.Type, "value", e.Value, "date", e.Date, "goals", len(touched))
	return touched
}

func (r *Reconciler) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Refresh fetches server progress and overlays it. Errors are for the
// caller to log.
func (r *Reconciler) Refresh(ctx context.Context) error {
	return r.refresh(ctx, r.generation())
}

func (r *Reconciler) refresh(ctx context.Context, gen uint64) error {
	if r.d.Remote == nil || !r.authenticated() {
		return nil
	}
	if r.hasPending() {
		r.d.Log.Debug("skipping refresh while activities are queued")
		return nil
	}
	rows, err := r.d.Remote.Achievements(ctx)
	if err != nil {
		return fmt.Errorf("fetch achievements: %w", err)
	}
	applied := r.guard(ctx, gen, func() {
		if r.hasPending() {
			return
		}
		r.d.Progress.OverlayFromServer(rows)
	})
	if !applied {
		r.d.Log.Debug("dropping stale achievements refresh", "rows", len(rows))
	}
	return nil
}

// hasPending reports whether queued activities are missing from the
// server's view. Overlaying server rows then would roll them back locally.
func (r *Reconciler) hasPending() bool {
	return r.d.Outbox != nil && len(r.d.Outbox.Pending()) > 0
}

// FlushPending replays queued activities and then refreshes server
// progress. Events that fail again stay queued and skip the refresh.
func (r *Reconciler) FlushPending(ctx context.Context) error {
	return r.flush(ctx, r.generation())
}

func (r *Reconciler) flush(ctx context.Context, gen uint64) error {
	if r.d.Remote == nil || !r.authenticated() {
		return nil
	}
	if r.d.Outbox == nil {
		return r.refresh(ctx, gen)
	}

	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	pending := r.d.Outbox.Pending()
	if len(pending) == 0 {
		return r.refresh(ctx, gen)
	}

	var failed []activity.Event
	var firstErr error
	for i, e := range pending {
		if err := ctx.Err(); err != nil {
			failed = append(failed, pending[i:]...)
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		if _, err := r.d.Remote.LogActivity(ctx, e); err != nil {
			failed = append(failed, e)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	nFailed := len(failed)

	if err := r.d.Outbox.Settle(len(pending), failed); err != nil {
		return fmt.Errorf("rewrite pending activities: %w", err)
	}

	r.d.Log.Info("replayed pending activities", "sent", len(pending)-nFailed, "failed", nFailed)
	if firstErr != nil {
		return fmt.Errorf("%d pending activities failed: %w", nFailed, firstErr)
	}
	return r.refresh(ctx, gen)
}
