package gateway

import (
	"context"
	"net/http"
)

// ListCrossings returns the reference crossings.
func (c *Client) ListCrossings(ctx context.Context) ([]Crossing, error) {
	var crossings []Crossing
	if err := c.doJSON(ctx, http.MethodGet, "crossings.list", "/crossings/", nil, &crossings); err != nil {
		return nil, err
	}
	return crossings, nil
}
