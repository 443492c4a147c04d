package gateway

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoToken is returned when the login answer carries no token.
var ErrNoToken = errors.New("login response carried no token")

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AuthToken string `json:"auth_token"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "auth.login", "/auth/token/login/",
		loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AuthToken == "" {
		return "", ErrNoToken
	}
	return resp.AuthToken, nil
}

// Me fetches the profile of the token in ctx.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "auth.me", "/auth/users/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
