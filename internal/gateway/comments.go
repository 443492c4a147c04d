package gateway

import (
	"context"
	"net/http"
)

type commentRequest struct {
	Text string `json:"text"`
}

// AddComment appends a comment to the closure thread.
func (c *Client) AddComment(ctx context.Context, closureID int64, text string) (*Comment, error) {
	var comment Comment
	path := closurePath(closureID) + "comments/"
	if err := c.doJSON(ctx, http.MethodPost, "comments.create", path, commentRequest{Text: text}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}
