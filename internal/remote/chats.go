package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/models"
)

// ListChats returns the user's chats. Listed chats are summaries and are
// never marked loaded.
func (c *Client) ListChats(ctx context.Context, cred models.Credential, userID string) ([]*chat.Session, error) {
	var list []*chat.Session
	if err := c.do(ctx, http.MethodGet, "/api/users/"+escape(userID)+"/chats", cred, nil, &list); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	out := list[:0]
	for _, s := range list {
		if s == nil {
			continue
		}
		s.SetLoaded(false)
		out = append(out, s)
	}
	return out, nil
}

// GetChat fetches a full chat.
func (c *Client) GetChat(ctx context.Context, cred models.Credential, id string) (*chat.Session, error) {
	var s chat.Session
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+escape(id), cred, nil, &s); err != nil {
		return nil, fmt.Errorf("fetching chat %s: %w", id, err)
	}
	s.Restore()
	return &s, nil
}

// UpsertChat creates or replaces a chat.
func (c *Client) UpsertChat(ctx context.Context, cred models.Credential, s *chat.Session) error {
	if err := c.do(ctx, http.MethodPut, "/api/chats/"+escape(s.ID), cred, s, nil); err != nil {
		return fmt.Errorf("saving chat %s: %w", s.ID, err)
	}
	return nil
}

// DeleteChat removes a chat.
func (c *Client) DeleteChat(ctx context.Context, cred models.Credential, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/chats/"+escape(id), cred, nil, nil); err != nil {
		return fmt.Errorf("deleting chat %s: %w", id, err)
	}
	return nil
}
