package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.post(ctx, "/users/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the returned token on the client
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/users/login", body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Logout revokes the current token and forgets it
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/users/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// CurrentUser returns nil without error when the caller is anonymous or the token is no longer valid
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var user User
	err := c.get(ctx, "/users/me", nil, &user)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return c.put(ctx, "/users/password", body, nil)
}

func (c *Client) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.get(ctx, fmt.Sprintf("/users/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListUsers(ctx context.Context, search string, page, limit int) (*Page[User], error) {
	q := pageQuery(page, limit)
	if search != "" {
		q.Set("q", search)
	}
	var out Page[User]
	if err := c.get(ctx, "/users", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetRole(ctx context.Context, id uint, role string) (*User, error) {
	var user User
	if err := c.put(ctx, fmt.Sprintf("/users/%d/role", id), map[string]string{"role": role}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
