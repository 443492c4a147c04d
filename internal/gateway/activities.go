package gateway

import (
	"context"
	"net/http"
)

// ListActivities returns the recent activity feed.
func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var activities []Activity
	if err := c.doJSON(ctx, http.MethodGet, "activities.list", "/activities/", nil, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}
