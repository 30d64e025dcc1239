package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RemoteGoal is a user goal as stored by the /api/goals endpoints.
type RemoteGoal struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Required      int    `json:"required"`
	Icon          string `json:"icon"`
	SystemDefined bool   `json:"systemDefined"`
}

type RemoteProgress struct {
	GoalID     int64      `json:"goalId"`
	Progress   int        `json:"progress"`
	UnlockedAt *time.Time `json:"unlockedAt"`
}

type CreateGoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Required    int    `json:"required"`
	Icon        string `json:"icon,omitempty"`
}

// CreateGoal stores a user goal on the server and returns its server id.
func (c *Client) CreateGoal(ctx context.Context, req CreateGoalRequest) (*RemoteGoal, error) {
	var out RemoteGoal
	if err := c.do(ctx, http.MethodPost, "/api/goals", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IncrementGoal(ctx context.Context, goalID int64, by int) (*RemoteProgress, error) {
	var out RemoteProgress
	path := fmt.Sprintf("/api/goals/%d/increment", goalID)
	if err := c.do(ctx, http.MethodPost, path, map[string]int{"by": by}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetGoalProgress(ctx context.Context, goalID int64, value int) (*RemoteProgress, error) {
	var out RemoteProgress
	path := fmt.Sprintf("/api/goals/%d/progress", goalID)
	if err := c.do(ctx, http.MethodPut, path, map[string]int{"progress": value}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
