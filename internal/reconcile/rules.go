package reconcile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmeshram/greenloop/internal/activity"
)

// Amount says how much a matching event adds to a goal.
type Amount string

const (
	PerEvent Amount = "per_event" // +1 per event
	ByValue  Amount = "value"     // +event.Value
)

// Rule maps an activity to one goal. A non-empty Unit restricts the rule to
// events logged in that unit.
type Rule struct {
	GoalID string `yaml:"goal"`
	Amount Amount `yaml:"amount,omitempty"`
	Unit   string `yaml:"unit,omitempty"`
}

func (r Rule) matches(e activity.Event) bool {
	return r.Unit == "" || r.Unit == e.Unit
}

func (r Rule) delta(e activity.Event) float64 {
	if r.Amount == ByValue {
		return e.Value
	}
	return 1
}

// Rules is the activity type to goal table.
type Rules map[activity.Type][]Rule

// DefaultRules returns the built-in table for the preset goals.
func DefaultRules() Rules {
	return Rules{
		activity.Walking: {
			{GoalID: "w1", Amount: PerEvent},
			{GoalID: "w2", Amount: PerEvent},
			{GoalID: "w3", Amount: ByValue, Unit: "steps"},
		},
		activity.Cycling: {
			{GoalID: "c1", Amount: PerEvent},
			{GoalID: "c2", Amount: ByValue},
		},
		activity.PublicTransport: {
			{GoalID: "pt1", Amount: PerEvent},
			{GoalID: "pt2", Amount: PerEvent},
		},
		activity.Reusable: {
			{GoalID: "rb1", Amount: PerEvent},
		},
		activity.Recycling: {
			{GoalID: "r1", Amount: PerEvent},
			{GoalID: "r2", Amount: ByValue},
		},
		activity.Other: {
			{GoalID: "o1", Amount: ByValue},
		},
	}
}

// For returns the rules that fire for e, in table order.
func (rs Rules) For(e activity.Event) []Rule {
	var out []Rule
	for _, r := range rs[e.Type] {
		if r.matches(e) {
			out = append(out, r)
		}
	}
	return out
}

// LoadRules reads a YAML table from path.
//
//	walking:
//	  - goal: w1
//	  - goal: w3
//	    amount: value
//	    unit: steps
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

func ParseRules(data []byte) (Rules, error) {
	var raw map[string][]Rule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := make(Rules, len(raw))
	for key, list := range raw {
		t := activity.ParseType(key)
		if t == "" || t == activity.Streak || (t == activity.Other && strings.ToLower(strings.TrimSpace(key)) != "other") {
			return nil, fmt.Errorf("unknown activity type %q", key)
		}
		for i, r := range list {
			if strings.TrimSpace(r.GoalID) == "" {
				return nil, fmt.Errorf("%s[%d]: missing goal", key, i)
			}
			switch r.Amount {
			case "":
				r.Amount = PerEvent
			case PerEvent, ByValue:
			default:
				return nil, fmt.Errorf("%s[%d]: unknown amount %q", key, i, r.Amount)
			}
			r.Unit = strings.ToLower(strings.TrimSpace(r.Unit))
			list[i] = r
		}
		rules[t] = append(rules[t], list...)
	}
	return rules, nil
}
