package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/guilhermegouw/parley/internal/models"
)

// LoginStartRequest opens a password proof for Name.
type LoginStartRequest struct {
	Name string `json:"name"`
}

// LoginStartResponse carries the server's salt and ephemeral public value.
type LoginStartResponse struct {
	Salt         string `json:"salt"`
	ServerPublic string `json:"server_public"`
	Name         string `json:"name"`
}

// LoginFinishRequest carries the client's public value and proof.
type LoginFinishRequest struct {
	Name         string `json:"name"`
	ServerPublic string `json:"server_public"`
	ClientPublic string `json:"client_public"`
	ClientProof  string `json:"client_proof"`
}

// LoginFinishResponse carries the server's counter-proof and the session.
type LoginFinishResponse struct {
	ServerProof string            `json:"server_proof"`
	User        *models.User      `json:"user"`
	Session     models.Credential `json:"session"`
}

// AccountRequest creates or edits an account. The password travels in
// plaintext over the transport's encryption.
type AccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// AccountResponse is the account and a fresh session.
type AccountResponse struct {
	User    *models.User      `json:"user"`
	Session models.Credential `json:"session"`
}

// LoginStart runs the first step of the password proof.
func (c *Client) LoginStart(ctx context.Context, req LoginStartRequest) (*LoginStartResponse, error) {
	var resp LoginStartResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/start", "", req, &resp); err != nil {
		return nil, fmt.Errorf("starting login: %w", err)
	}
	return &resp, nil
}

// LoginFinish runs the second step of the password proof.
func (c *Client) LoginFinish(ctx context.Context, req LoginFinishRequest) (*LoginFinishResponse, error) {
	var resp LoginFinishResponse
	if err := c.do(ctx, http.MethodPost, "/api/login/finish", "", req, &resp); err != nil {
		return nil, fmt.Errorf("finishing login: %w", err)
	}
	return &resp, nil
}

// GetUser fetches a user.
func (c *Client) GetUser(ctx context.Context, cred models.Credential, id string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+escape(id), cred, nil, &u); err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", id, err)
	}
	return &u, nil
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, req AccountRequest) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", "", req, &resp); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return &resp, nil
}

// EditUser changes an account's name, password or default API key.
func (c *Client) EditUser(ctx context.Context, cred models.Credential, id string, req AccountRequest) (*AccountResponse, error) {
	var resp AccountResponse
	if err := c.do(ctx, http.MethodPut, "/api/users/"+escape(id), cred, req, &resp); err != nil {
		return nil, fmt.Errorf("editing account: %w", err)
	}
	return &resp, nil
}
