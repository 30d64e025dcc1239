package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmeshram/greenloop/internal/store"
)

const (
	// StorageKey holds the merged catalog, customs included.
	StorageKey = "ach_goals_v2"
	// OverridesKey holds the preset definitions last sent by the server.
	OverridesKey = "ach_goal_overrides_v1"
)

var ErrInvalidGoal = errors.New("invalid goal")

// Fetcher returns the server's goal definitions.
type Fetcher interface {
	MasterGoals(ctx context.Context) ([]Goal, error)
}

// NewGoal is the input for a user-defined goal.
type NewGoal struct {
	Title       string
	Description string
	Required    float64
	Unit        string
	Icon        string
}

// Catalog maps goal ids to definitions. It is never empty.
type Catalog struct {
	kv  store.KV
	log *slog.Logger

	mu    sync.RWMutex
	base  []Goal
	goals []Goal
	byID  map[string]int
}

// New builds a catalog from the presets plus whatever was persisted. A
// positive streakDays overrides the threshold of the streak preset.
func New(kv store.KV, log *slog.Logger, streakDays float64) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	base := Presets()
	if streakDays > 0 {
		for i := range base {
			if base[i].ID == StreakGoalID {
				base[i].Required = streakDays
				base[i].Title = fmt.Sprintf("%g-Day Green Streak", streakDays)
			}
		}
	}

	c := &Catalog{kv: kv, log: log, base: base}
	// Server definitions of presets stay in effect while offline. Local
	// copies of presets are not trusted, so config changes still apply.
	c.setLocked(merge(base, c.readGoals(StorageKey), c.readGoals(OverridesKey)))
	return c
}

func (c *Catalog) readGoals(key string) []Goal {
	raw, ok, err := c.kv.GetItem(key)
	if err != nil {
		c.log.Warn("catalog read failed, using presets", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var goals []Goal
	if err := json.Unmarshal([]byte(raw), &goals); err != nil {
		c.log.Warn("catalog data unreadable, using presets", "key", key, "error", err)
		return nil
	}
	return goals
}

func (c *Catalog) writeGoals(key string, goals []Goal) {
	data, err := json.Marshal(goals)
	if err != nil {
		c.log.Warn("catalog encode failed", "key", key, "error", err)
		return
	}
	if err := c.kv.SetItem(key, string(data)); err != nil {
		c.log.Warn("catalog persist failed", "key", key, "error", err)
	}
}

// setLocked swaps the goal list. Callers hold c.mu or own c exclusively.
func (c *Catalog) setLocked(goals []Goal) {
	byID := make(map[string]int, len(goals))
	for i, g := range goals {
		byID[g.ID] = i
	}
	c.goals = goals
	c.byID = byID
}

// Load overlays the server catalog. Any failure leaves the current catalog
// in place; the returned error is informational only.
func (c *Catalog) Load(ctx context.Context, f Fetcher) error {
	if f == nil {
		return nil
	}
	server, err := f.MasterGoals(ctx)
	if err != nil {
		c.log.Warn("goal catalog unavailable, using local goals", "error", err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	valid := server[:0:0]
	for _, g := range server {
		if g.ID == "" || g.Required <= 0 {
			c.log.Warn("ignoring invalid server goal", "id", g.ID, "required", g.Required)
			continue
		}
		valid = append(valid, g)
	}

	var overrides []Goal
	for _, g := range valid {
		if IsPreset(g.ID) {
			overrides = append(overrides, g)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(merge(c.base, c.goals, valid))
	c.writeGoals(StorageKey, c.goals)
	c.writeGoals(OverridesKey, overrides)
	c.log.Debug("goal catalog merged", "server", len(valid), "total", len(c.goals))
	return nil
}

// AddCustom appends a user goal with a generated id.
func (c *Catalog) AddCustom(n NewGoal) (Goal, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return Goal{}, fmt.Errorf("%w: title is required", ErrInvalidGoal)
	}
	if n.Required <= 0 {
		return Goal{}, fmt.Errorf("%w: required must be positive", ErrInvalidGoal)
	}
	unit := n.Unit
	if unit == "" {
		unit = "actions"
	}
	icon := n.Icon
	if icon == "" {
		icon = "⭐"
	}

	g := Goal{
		ID:          "custom_" + uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(n.Description),
		Required:    n.Required,
		Unit:        unit,
		Icon:        icon,
		Custom:      true,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(append(append([]Goal(nil), c.goals...), g))
	c.writeGoals(StorageKey, c.goals)
	return g, nil
}

// LinkServer records the server id of custom goal id.
func (c *Catalog) LinkServer(id string, serverID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[id]
	if !ok || !c.goals[i].Custom {
		return fmt.Errorf("%w: no custom goal %q", ErrInvalidGoal, id)
	}
	goals := append([]Goal(nil), c.goals...)
	goals[i].ServerID = serverID
	c.setLocked(goals)
	c.writeGoals(StorageKey, c.goals)
	return nil
}

func (c *Catalog) Lookup(id string) (Goal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Goal{}, false
	}
	return c.goals[i], true
}

// Required returns the threshold of id. Unknown ids report false.
func (c *Catalog) Required(id string) (float64, bool) {
	g, ok := c.Lookup(id)
	if !ok {
		return 0, false
	}
	return g.Required, true
}

// Goals returns the catalog in display order.
func (c *Catalog) Goals() []Goal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Goal(nil), c.goals...)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.goals)
}
