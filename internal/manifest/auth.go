package manifest

import (
	"context"
	"fmt"
	"net/http"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the given authenticable entity and keeps the
// returned token. On failure any previous token is dropped.
func (c *Client) Login(ctx context.Context, entity, email, password string) error {
	var resp tokenResponse
	err := c.doJSON(ctx, "login", http.MethodPost, "/auth/"+entity+"/login", nil,
		map[string]string{"email": email, "password": password}, &resp)
	if err == nil && resp.Token == "" {
		err = fmt.Errorf("login: backend returned no token")
	}
	if err != nil {
		c.setToken("")
		return err
	}
	c.setToken(resp.Token)
	return nil
}

// Signup creates a record of the authenticable entity. fields must include
// email and password; extra properties such as name are passed through. The
// returned token is kept.
func (c *Client) Signup(ctx context.Context, entity string, fields map[string]interface{}) error {
	var resp tokenResponse
	if err := c.doJSON(ctx, "signup", http.MethodPost, "/auth/"+entity+"/signup", nil, fields, &resp); err != nil {
		return err
	}
	if resp.Token != "" {
		c.setToken(resp.Token)
	}
	return nil
}

// Me decodes the authenticated record of entity into out. It returns
// ErrNoToken without a network call when the client holds no token.
func (c *Client) Me(ctx context.Context, entity string, out interface{}) error {
	if !c.HasToken() {
		return ErrNoToken
	}
	return c.doJSON(ctx, "me", http.MethodGet, "/auth/"+entity+"/me", nil, nil, out)
}
