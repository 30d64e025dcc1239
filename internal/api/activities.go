package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmeshram/greenloop/internal/activity"
)

type logActivityRequest struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit,omitempty"`
	Date   string  `json:"date,omitempty"`
}

// LoggedActivity is the server's record of an activity.
type LoggedActivity struct {
	ID     int64   `json:"id"`
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Date   string  `json:"date"`
	Points int     `json:"points"`
}

// Kind maps the server's enum name back to an activity type.
func (a LoggedActivity) Kind() activity.Type {
	return activity.ParseType(a.Type)
}

// LogActivity records e on the server. The server's activity enum uses
// upper-case names.
func (c *Client) LogActivity(ctx context.Context, e activity.Event) (*LoggedActivity, error) {
	body := logActivityRequest{
		Type:   strings.ToUpper(string(e.Type)),
		Amount: e.Value,
		Unit:   e.Unit,
		Date:   e.Date,
	}
	var out LoggedActivity
	if err := c.do(ctx, http.MethodPost, "/api/activities", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentActivities returns the user's latest logged activities.
func (c *Client) RecentActivities(ctx context.Context) ([]LoggedActivity, error) {
	var out []LoggedActivity
	if err := c.do(ctx, http.MethodGet, "/api/activities/recent", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
