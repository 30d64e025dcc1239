package activity

import (
	"math"
	"strings"
	"time"
)

// Type is the closed set of activity kinds a goal can track.
type Type string

const (
	Walking         Type = "walking"
	Cycling         Type = "cycling"
	PublicTransport Type = "public_transport"
	Reusable        Type = "reusable"
	Recycling       Type = "recycling"
	Other           Type = "other"
	Streak          Type = "streak"
)

// Loggable lists the types a user can log, in menu order. Streak is derived, never logged.
var Loggable = []Type{Walking, Cycling, PublicTransport, Reusable, Recycling, Other}

var labels = map[Type]string{
	Walking:         "Walking instead of driving",
	Cycling:         "Cycling",
	PublicTransport: "Public transport",
	Reusable:        "Reusable bottle / bag",
	Recycling:       "Recycling",
	Other:           "Other sustainable action",
	Streak:          "Daily streak",
}

func (t Type) Valid() bool {
	_, ok := labels[t]
	return ok
}

func (t Type) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// ParseType turns free text from the logging form into a Type. This is the
// only place aliases are recognised; anything unknown becomes Other.
// An empty string yields "" so the bus can drop it.
func ParseType(s string) Type {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return ""
	case "walking", "walk":
		return Walking
	case "cycling", "bike", "biking":
		return Cycling
	case "public_transport", "public-transport", "publictransport", "transit":
		return PublicTransport
	case "reusable":
		return Reusable
	case "recycling", "recycle":
		return Recycling
	case "streak":
		return Streak
	}
	return Other
}

// DateLayout is the civil-date format used for events and streaks.
const DateLayout = "2006-01-02"

// Event is one logged activity.
type Event struct {
	Type  Type    `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
	Date  string  `json:"date,omitempty"`
}

// Normalized fills defaults: a missing, zero, negative or NaN value becomes 1
// and a missing or unparseable date becomes today in now's location.
func (e Event) Normalized(now time.Time) Event {
	if e.Value <= 0 || math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		e.Value = 1
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		e.Date = now.Format(DateLayout)
	}
	e.Unit = strings.ToLower(strings.TrimSpace(e.Unit))
	return e
}
