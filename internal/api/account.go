package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"expensetracker/internal/core"
)

func (c *Client) Profile(ctx context.Context) (*core.Profile, error) {
	var p core.Profile
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, nil, &p); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, u core.ProfileUpdate) (*core.Profile, error) {
	var p core.Profile
	if err := c.do(ctx, http.MethodPut, "/users/profile", nil, u, &p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &p, nil
}

// Login authenticates and, when the response carries a token, persists it
// in the client's token store.
func (c *Client) Login(ctx context.Context, creds core.Credentials) (*core.AuthSession, error) {
	var s core.AuthSession
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &s); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := c.storeSession(ctx, &s); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &s, nil
}

// Register creates an account; a returned token is persisted as for Login.
func (c *Client) Register(ctx context.Context, reg core.Registration) (*core.AuthSession, error) {
	var s core.AuthSession
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &s); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := c.storeSession(ctx, &s); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &s, nil
}

// Logout forgets the persisted token. The API is stateless so nothing is sent.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) storeSession(ctx context.Context, s *core.AuthSession) error {
	if s.Token == "" {
		return nil
	}
	if err := c.tokens.SetToken(ctx, s.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Currencies lists the supported currency codes. The endpoint may answer
// with plain codes or with objects carrying a "code" field.
func (c *Client) Currencies(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/currencies", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(raw, &codes); err == nil {
		return codes, nil
	}
	var objs []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, fmt.Errorf("list currencies: %w: %w", ErrDecode, err)
	}
	codes = make([]string, 0, len(objs))
	for _, o := range objs {
		codes = append(codes, o.Code)
	}
	return codes, nil
}
