package client

import (
	"context"
	"net/http"
)

// User is the account as the API serializes it.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "users/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile sends email, password and an optional avatar file.
func (c *Client) UpdateProfile(ctx context.Context, form Form) (*User, error) {
	var out User
	if err := c.doForm(ctx, http.MethodPut, "users/profile", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
