package state

import (
	"errors"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/exchange"
)

// Send appends a user message and asks for a reply to it.
func (s *Store) Send(content string) (*chat.Message, error) {
	s.exchange.Cancel()
	if _, err := s.AppendMessage(chat.RoleUser, content); err != nil {
		return nil, err
	}
	return s.Chat("")
}

// Chat streams a reply into the message targetID, sending the history up
// to and including it. An empty targetID appends an empty assistant
// message to reply into. It returns the target once the exchange has
// started; the exchange outlives the call and ends with Cancel or Close.
func (s *Store) Chat(targetID string) (*chat.Message, error) {
	s.exchange.Cancel()

	var target *chat.Message
	req, c, err := s.prepare(func(c *chat.Session) (*exchange.Request, error) {
		if targetID == "" {
			target = chat.NewMessage(chat.RoleAssistant, "")
			c.Append(target)
		} else {
			m, err := findMessage(c, targetID)
			if err != nil {
				return nil, err
			}
			target = m
		}
		req, err := exchange.ChatRequest(c, target, s.user, s.cred)
		if err != nil {
			return nil, err
		}
		target = target.Clone()
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	s.start(req, c)
	return target, nil
}

// Continue extends an assistant message that stopped for length.
func (s *Store) Continue(id string) error {
	s.exchange.Cancel()

	req, c, err := s.prepare(func(c *chat.Session) (*exchange.Request, error) {
		m, err := findMessage(c, id)
		if err != nil {
			return nil, err
		}
		return exchange.ContinueRequest(c, m, s.user, s.cred)
	})
	if err != nil {
		return err
	}
	s.start(req, c)
	return nil
}

// Reroll regenerates a message in place from the history before it.
func (s *Store) Reroll(id string) error {
	s.exchange.Cancel()

	req, c, err := s.prepare(func(c *chat.Session) (*exchange.Request, error) {
		m, err := findMessage(c, id)
		if err != nil {
			return nil, err
		}
		req, err := exchange.RerollRequest(c, m, s.user, s.cred)
		if err != nil {
			return nil, err
		}
		c.Replace(id, &chat.Message{ID: m.ID, Role: chat.RoleAssistant})
		return req, nil
	})
	if err != nil {
		return err
	}
	s.start(req, c)
	return nil
}

// Cancel aborts the running exchange, if any, and waits for it to finish.
func (s *Store) Cancel() {
	s.exchange.Cancel()
}

// prepare builds a request against the active chat under the lock.
func (s *Store) prepare(build func(c *chat.Session) (*exchange.Request, error)) (*exchange.Request, *chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.active
	if c.ID != "" && !c.Loaded() {
		return nil, nil, ErrNotLoaded
	}
	req, err := build(c)
	if err != nil {
		return nil, nil, err
	}
	return req, c, nil
}

func (s *Store) start(req *exchange.Request, c *chat.Session) {
	s.exchange.Start(s.ctx, req, &replyHandler{store: s, chat: c, target: req.ID})

	s.mu.Lock()
	s.publishLocked(events.StateEventExchange)
	s.mu.Unlock()
}

// replyHandler applies one exchange's results to the chat it was started
// on, which need not be active any more.
type replyHandler struct {
	store  *Store
	chat   *chat.Session
	target string
}

func (h *replyHandler) OnUpdate(_ uint64, m *chat.Message) error {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !h.chat.Replace(h.target, m) {
		return exchange.ErrTargetMissing
	}
	h.chat.SetInFlightCost(m.CostUSD)
	s.publishLocked(events.StateEventExchange)
	return nil
}

func (h *replyHandler) OnTerminate(o exchange.Outcome) {
	s := h.store
	s.mu.Lock()
	if o.Err != nil {
		if m, ok := h.chat.Find(h.target); ok {
			h.chat.Replace(h.target, m.WithError(o.Err.Error()))
		}
	}
	h.chat.CloseCosts()
	s.publishLocked(events.StateEventExchange)
	s.mu.Unlock()

	s.persist.Schedule()
	if errors.Is(o.Err, exchange.ErrUnauthorized) {
		s.forceLogout(o.Err)
	}
}
