package catalog

import "github.com/dmeshram/greenloop/internal/activity"

// StreakGoalID is the preset fed by the streak tracker.
const StreakGoalID = "s1"

// Goal is a quantified milestone with a threshold.
type Goal struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Required     float64       `json:"required"`
	Unit         string        `json:"unit,omitempty"`
	ActivityType activity.Type `json:"activityType,omitempty"`
	Icon         string        `json:"icon,omitempty"`
	Custom       bool          `json:"custom,omitempty"`
	// ServerID is set once a custom goal has been created on the server.
	ServerID int64 `json:"serverId,omitempty"`
}

var presets = []Goal{
	{ID: "w1", Title: "First Walk Instead Of Driving", Description: "Log your first walking action instead of driving.", Required: 1, Unit: "actions", ActivityType: activity.Walking, Icon: "🚶"},
	{ID: "w2", Title: "5 Walks Instead Of Driving", Description: "Choose walking instead of driving 5 times.", Required: 5, Unit: "actions", ActivityType: activity.Walking, Icon: "🥾"},
	{ID: "w3", Title: "10,000 Steps", Description: "Accumulate 10,000 steps total.", Required: 10000, Unit: "steps", ActivityType: activity.Walking, Icon: "🏃"},

	{ID: "c1", Title: "First Cycle", Description: "Log your first cycling activity.", Required: 1, Unit: "actions", ActivityType: activity.Cycling, Icon: "🚴"},
	{ID: "c2", Title: "Cycle 50 km", Description: "Cycle a total of 50 km.", Required: 50, Unit: "km", ActivityType: activity.Cycling, Icon: "🚴"},

	{ID: "pt1", Title: "First Public Transport Ride", Description: "Use public transport instead of driving once.", Required: 1, Unit: "actions", ActivityType: activity.PublicTransport, Icon: "🚌"},
	{ID: "pt2", Title: "20 Public Transport Trips", Description: "Use public transport 20 times.", Required: 20, Unit: "actions", ActivityType: activity.PublicTransport, Icon: "🚆"},

	{ID: "rb1", Title: "Reusable Bottle/Bag, 10 Uses", Description: "Use a reusable bottle or bag 10 times.", Required: 10, Unit: "actions", ActivityType: activity.Reusable, Icon: "♻️"},

	{ID: "r1", Title: "Recycle 5 Items", Description: "Recycle 5 items.", Required: 5, Unit: "items", ActivityType: activity.Recycling, Icon: "🗑️"},
	{ID: "r2", Title: "Recycle 50 Items", Description: "Recycle 50 items.", Required: 50, Unit: "items", ActivityType: activity.Recycling, Icon: "🏆"},

	{ID: "o1", Title: "25 Other Sustainable Actions", Description: "Log 25 'Other sustainable action' entries.", Required: 25, Unit: "actions", ActivityType: activity.Other, Icon: "🌱"},

	{ID: StreakGoalID, Title: "7-Day Green Streak", Description: "Be active 7 days in a row.", Required: 7, Unit: "days", ActivityType: activity.Streak, Icon: "🔥"},
}

// Presets returns a copy of the built-in goals in canonical order.
func Presets() []Goal {
	out := make([]Goal, len(presets))
	copy(out, presets)
	return out
}

func presetIndex() map[string]int {
	idx := make(map[string]int, len(presets))
	for i, g := range presets {
		idx[g.ID] = i
	}
	return idx
}

// IsPreset reports whether id names a built-in goal.
func IsPreset(id string) bool {
	_, ok := presetIndex()[id]
	return ok
}

// Merge combines the locally known catalog with a server catalog.
//
// Presets are the baseline and a preset also present on the server takes
// the server definition. Server-only goals are added. Goals from local that
// are neither presets nor on the server (user customs) are kept as they are.
// Preset ids come first in canonical order, then everything else in arrival
// order: local entries first, then server-only entries.
func Merge(local, server []Goal) []Goal {
	return merge(presets, local, server)
}

func merge(base, local, server []Goal) []Goal {
	pidx := make(map[string]int, len(base))
	for i, g := range base {
		pidx[g.ID] = i
	}

	fromServer := make(map[string]Goal, len(server))
	for _, g := range server {
		if g.ID == "" {
			continue
		}
		fromServer[g.ID] = g
	}

	out := make([]Goal, 0, len(base)+len(local)+len(server))
	for _, p := range base {
		if g, ok := fromServer[p.ID]; ok {
			out = append(out, g)
			continue
		}
		out = append(out, p)
	}

	seen := make(map[string]bool, len(out))
	for _, g := range out {
		seen[g.ID] = true
	}

	for _, g := range local {
		if g.ID == "" || seen[g.ID] {
			continue
		}
		if _, isPreset := pidx[g.ID]; isPreset {
			continue
		}
		if sg, ok := fromServer[g.ID]; ok {
			g = sg
		}
		seen[g.ID] = true
		out = append(out, g)
	}

	for _, g := range server {
		if g.ID == "" || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}
