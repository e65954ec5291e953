package state

import (
	"errors"
	"testing"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/exchange"
)

func TestSendStreamsIntoPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	placeholder, err := h.store.Send("hello")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	req := h.ex.lastRequest()
	if req == nil || req.ID != placeholder.ID {
		t.Fatalf("request = %+v, want target %s", req, placeholder.ID)
	}
	if len(req.Messages) != 2 || req.Messages[0].Content != "hello" {
		t.Errorf("request history = %+v", req.Messages)
	}
	if req.APIKey != "alice-key" || req.Credential != "tok-alice" {
		t.Errorf("request auth = %q %q", req.APIKey, req.Credential)
	}
	if !h.store.View().Busy {
		t.Error("store should report a running exchange")
	}

	err = h.ex.update(&chat.Message{ID: placeholder.ID, Role: chat.RoleAssistant, Content: "hi", CostUSD: 0.25})
	if err != nil {
		t.Fatalf("update error = %v", err)
	}
	v := h.store.View()
	if got := contents(v.Active); got[1] != "hi" {
		t.Errorf("streamed content = %v", got)
	}
	if v.Active.RunningCost() != 0.25 {
		t.Errorf("RunningCost() = %v, want 0.25", v.Active.RunningCost())
	}

	h.ex.finish(exchange.Outcome{})
	v = h.store.View()
	if v.Busy {
		t.Error("exchange should be finished")
	}
	if v.Active.Cost != 0.25 || v.Active.InFlightCost() != 0 {
		t.Errorf("costs = %v / %v, want closed", v.Active.Cost, v.Active.InFlightCost())
	}
}

func TestExchangeErrorAnnotatesTarget(t *testing.T) {
	h := newHarness(t)
	placeholder, err := h.store.Send("hello")
	if err != nil {
		t.Fatal(err)
	}
	h.ex.finish(exchange.Outcome{Err: errors.New("model overloaded")})

	m, ok := h.store.View().Active.Find(placeholder.ID)
	if !ok || m.Error != "model overloaded" {
		t.Errorf("target = %+v, want error annotation", m)
	}
}

func TestExchangeTargetDeleted(t *testing.T) {
	h := newHarness(t)
	placeholder, err := h.store.Send("hello")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.store.DeleteMessage(placeholder.ID); err != nil {
		t.Fatal(err)
	}
	err = h.ex.update(&chat.Message{ID: placeholder.ID, Role: chat.RoleAssistant, Content: "late"})
	if !errors.Is(err, exchange.ErrTargetMissing) {
		t.Errorf("update error = %v, want ErrTargetMissing", err)
	}
	if got := contents(h.store.View().Active); len(got) != 1 {
		t.Errorf("messages = %v, deleted target must not come back", got)
	}
}

func TestExchangeUnauthorizedForcesLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	if _, err := h.store.Send("hello"); err != nil {
		t.Fatal(err)
	}
	h.ex.finish(exchange.Outcome{Err: exchange.ErrUnauthorized})
	if v := h.store.View(); v.User != nil || v.LoggedIn {
		t.Error("expected forced logout")
	}
}

func TestContinue(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AppendMessage(chat.RoleUser, "write a poem"); err != nil {
		t.Fatal(err)
	}
	reply, err := h.store.AppendMessage(chat.RoleAssistant, "Roses are")
	if err != nil {
		t.Fatal(err)
	}

	if err := h.store.Continue(reply.ID); !errors.Is(err, exchange.ErrNotContinuable) {
		t.Fatalf("Continue() error = %v, want ErrNotContinuable", err)
	}

	if err := h.store.mutate(func(c *chat.Session) error {
		m, _ := c.Find(reply.ID)
		m.FinishReason = chat.FinishReasonLength
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Continue(reply.ID); err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	req := h.ex.lastRequest()
	if req.Continuation != "Roses are" || req.ID != reply.ID {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 {
		t.Errorf("history length = %d, want 2", len(req.Messages))
	}
	h.ex.finish(exchange.Outcome{})

	if err := h.store.Continue("missing"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Continue(missing) error = %v", err)
	}
}

func TestChatIntoExistingMessage(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AppendMessage(chat.RoleUser, "question"); err != nil {
		t.Fatal(err)
	}
	slot, err := h.store.AppendMessage(chat.RoleAssistant, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.AppendMessage(chat.RoleUser, "later"); err != nil {
		t.Fatal(err)
	}

	target, err := h.store.Chat(slot.ID)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if target.ID != slot.ID {
		t.Errorf("target = %s, want %s", target.ID, slot.ID)
	}
	req := h.ex.lastRequest()
	if req.ID != slot.ID || len(req.Messages) != 2 || req.Messages[1].ID != slot.ID {
		t.Errorf("request = %+v, want history ending at the target", req)
	}
	if got := contents(h.store.View().Active); len(got) != 3 {
		t.Errorf("messages = %v, want nothing appended", got)
	}
	h.ex.finish(exchange.Outcome{})

	if _, err := h.store.Chat("missing"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Chat(missing) error = %v", err)
	}
}

func TestReroll(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.AppendMessage(chat.RoleUser, "question"); err != nil {
		t.Fatal(err)
	}
	reply, _ := h.store.AppendMessage(chat.RoleAssistant, "bad answer")
	if _, err := h.store.AppendMessage(chat.RoleUser, "follow up"); err != nil {
		t.Fatal(err)
	}

	if err := h.store.Reroll(reply.ID); err != nil {
		t.Fatalf("Reroll() error = %v", err)
	}
	req := h.ex.lastRequest()
	if len(req.Messages) != 1 || req.Messages[0].Content != "question" {
		t.Errorf("history = %+v, want only messages before the target", req.Messages)
	}
	v := h.store.View()
	m, ok := v.Active.Find(reply.ID)
	if !ok || m.Content != "" || m.Role != chat.RoleAssistant {
		t.Errorf("target = %+v, want reset in place", m)
	}
	if got := contents(v.Active); len(got) != 3 || got[2] != "follow up" {
		t.Errorf("messages = %v", got)
	}
}

func TestSendCancelsRunningExchange(t *testing.T) {
	h := newHarness(t)
	first, err := h.store.Send("one")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Send("two"); err != nil {
		t.Fatal(err)
	}
	if got := contents(h.store.View().Active); len(got) != 4 {
		t.Errorf("messages = %v", got)
	}
	// The superseded reply keeps its partial content and no error.
	m, _ := h.store.View().Active.Find(first.ID)
	if m.Error != "" {
		t.Errorf("cancelled reply error = %q", m.Error)
	}
}
