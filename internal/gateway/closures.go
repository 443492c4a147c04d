package gateway

import (
	"context"
	"net/http"
	"net/url"

	"crossing-closures/closure-portal/pkg/workflows"
)

// ListClosures returns closures, filtered by status unless status is empty.
func (c *Client) ListClosures(ctx context.Context, status workflows.Status) ([]Closure, error) {
	path := "/closures/"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var closures []Closure
	if err := c.doJSON(ctx, http.MethodGet, "closures.list", path, nil, &closures); err != nil {
		return nil, err
	}
	return closures, nil
}

func (c *Client) GetClosure(ctx context.Context, id int64) (*Closure, error) {
	var closure Closure
	if err := c.doJSON(ctx, http.MethodGet, "closures.get", closurePath(id), nil, &closure); err != nil {
		return nil, err
	}
	return &closure, nil
}

func (c *Client) CreateClosure(ctx context.Context, in ClosureInput) (*Closure, error) {
	var closure Closure
	if err := c.doJSON(ctx, http.MethodPost, "closures.create", "/closures/", in, &closure); err != nil {
		return nil, err
	}
	return &closure, nil
}

func (c *Client) UpdateClosure(ctx context.Context, id int64, in ClosureInput) (*Closure, error) {
	var closure Closure
	if err := c.doJSON(ctx, http.MethodPut, "closures.update", closurePath(id), in, &closure); err != nil {
		return nil, err
	}
	return &closure, nil
}

func (c *Client) DeleteClosure(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "closures.delete", closurePath(id), nil, nil)
}

// The action endpoints answer with a short status message, not the closure;
// callers re-fetch to see the new state.

func (c *Client) SendForApproval(ctx context.Context, id int64) error {
	return c.action(ctx, id, "send_for_approval", nil)
}

func (c *Client) ApproveAdministration(ctx context.Context, id int64) error {
	return c.action(ctx, id, "approve_administration", nil)
}

func (c *Client) ApproveGibdd(ctx context.Context, id int64) error {
	return c.action(ctx, id, "approve_gibdd", nil)
}

func (c *Client) Reject(ctx context.Context, id int64) error {
	return c.action(ctx, id, "reject", nil)
}

type signRequest struct {
	DigitalSignature string `json:"digital_signature"`
}

// SignClosure attaches a signature stamp to the closure.
func (c *Client) SignClosure(ctx context.Context, id int64, signature string) error {
	return c.action(ctx, id, "sign_closure", signRequest{DigitalSignature: signature})
}

func (c *Client) action(ctx context.Context, id int64, name string, in interface{}) error {
	return c.doJSON(ctx, http.MethodPost, "closures."+name, closurePath(id)+name+"/", in, nil)
}
