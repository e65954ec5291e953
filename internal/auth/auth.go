// Package auth logs users in with an SRP-6a password proof and manages
// accounts on the remote store.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/remote"
	"github.com/guilhermegouw/parley/internal/srp"
)

// Authentication errors.
var (
	ErrBadCredentials = errors.New("incorrect name or password")
	ErrServerProof    = errors.New("server could not prove it knows the password verifier")
	ErrNoSession      = errors.New("server returned no session")
)

// API is the subset of the remote store used for authentication.
type API interface {
	LoginStart(ctx context.Context, req remote.LoginStartRequest) (*remote.LoginStartResponse, error)
	LoginFinish(ctx context.Context, req remote.LoginFinishRequest) (*remote.LoginFinishResponse, error)
	CreateUser(ctx context.Context, req remote.AccountRequest) (*remote.AccountResponse, error)
	EditUser(ctx context.Context, cred models.Credential, id string, req remote.AccountRequest) (*remote.AccountResponse, error)
}

// Result is an authenticated identity.
type Result struct {
	User       *models.User
	Credential models.Credential
}

// Client runs authentication flows against the store.
type Client struct {
	api   API
	group *srp.Group
}

// NewClient creates an authentication client using the RFC 5054 group.
func NewClient(api API) *Client {
	return &Client{api: api, group: srp.RFC5054Group2048}
}

// Login proves knowledge of password without sending it. Nothing is
// returned unless the server's counter-proof verifies.
func (c *Client) Login(ctx context.Context, name, password string) (*Result, error) {
	if name == "" {
		return nil, models.ErrEmptyName
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	start, err := c.api.LoginStart(ctx, remote.LoginStartRequest{Name: name})
	if err != nil {
		return nil, credentialError(err)
	}
	identity := start.Name
	if identity == "" {
		identity = name
	}

	client, err := srp.NewClient(c.group)
	if err != nil {
		return nil, err
	}
	proof, err := client.Derive(identity, password, start.Salt, start.ServerPublic)
	if err != nil {
		return nil, fmt.Errorf("computing password proof: %w", err)
	}

	finish, err := c.api.LoginFinish(ctx, remote.LoginFinishRequest{
		Name:         identity,
		ServerPublic: start.ServerPublic,
		ClientPublic: client.PublicHex(),
		ClientProof:  proof.ClientProofHex(),
	})
	if err != nil {
		return nil, credentialError(err)
	}
	if err := proof.VerifyServer(finish.ServerProof); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerProof, err)
	}
	if finish.User == nil || finish.Session.Empty() {
		return nil, ErrNoSession
	}

	return &Result{User: finish.User, Credential: finish.Session}, nil
}

// Create registers a new account and returns its first session.
func (c *Client) Create(ctx context.Context, name, password, apiKey string) (*Result, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	resp, err := c.api.CreateUser(ctx, remote.AccountRequest{Name: name, Password: password, APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return accountResult(resp)
}

// Edit updates the account behind cred. An empty password keeps the
// current one.
func (c *Client) Edit(ctx context.Context, cred models.Credential, user *models.User, password string) (*Result, error) {
	if user == nil {
		return nil, remote.ErrUnauthorized
	}
	if err := models.ValidateName(user.Name); err != nil {
		return nil, err
	}

	resp, err := c.api.EditUser(ctx, cred, user.ID, remote.AccountRequest{
		Name:     user.Name,
		Password: password,
		APIKey:   user.APIKey,
	})
	if err != nil {
		return nil, err
	}
	if resp.Session.Empty() {
		resp.Session = cred
	}
	return accountResult(resp)
}

func accountResult(resp *remote.AccountResponse) (*Result, error) {
	if resp.User == nil || resp.Session.Empty() {
		return nil, ErrNoSession
	}
	return &Result{User: resp.User, Credential: resp.Session}, nil
}

// credentialError turns a rejected login step into ErrBadCredentials.
func credentialError(err error) error {
	var se *remote.StatusError
	if errors.Is(err, remote.ErrUnauthorized) || errors.As(err, &se) && se.Status < 500 {
		return fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	return err
}
