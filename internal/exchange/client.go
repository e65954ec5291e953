// Package exchange drives one streaming request/response exchange at a time
// against the generation service.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/pubsub"
)

// State is a step of the exchange lifecycle.
type State int

// Exchange states.
const (
	Idle State = iota
	Connecting
	Awaiting
	Receiving
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Awaiting:
		return "awaiting"
	case Receiving:
		return "receiving"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTargetMissing ends an exchange whose target message disappeared.
var ErrTargetMissing = errors.New("target message no longer exists")

// Transport opens streams to the generation service.
type Transport interface {
	Open(ctx context.Context, req *Request) (Stream, error)
}

// Stream is one open exchange. Recv returns io.EOF when the service closes
// the stream normally.
type Stream interface {
	Send(ctx context.Context, req *Request) error
	Recv(ctx context.Context) (*chat.Message, error)
	Close() error
}

// Outcome describes how an exchange ended.
type Outcome struct {
	Epoch     uint64
	TargetID  string
	Cancelled bool
	Err       error
}

// Handler receives an exchange's results. OnUpdate only sees updates from
// the current exchange; an error from it ends the exchange. OnTerminate
// runs exactly once per exchange whether or not it is still current.
// Neither may call Start or Cancel.
type Handler interface {
	OnUpdate(epoch uint64, m *chat.Message) error
	OnTerminate(o Outcome)
}

type run struct {
	epoch  uint64
	target string
	cancel context.CancelFunc
	done   chan struct{}
}

// Client runs exchanges over a Transport, at most one at a time.
type Client struct { //nolint:govet // fieldalignment: preserving logical field order
	transport Transport
	pub       pubsub.Publisher[events.ExchangeEvent]

	// control serializes Start and Cancel.
	control sync.Mutex
	// deliver orders epoch changes against update delivery.
	deliver sync.Mutex

	mu     sync.Mutex
	epoch  uint64
	state  State
	active *run
}

// NewClient creates a client publishing lifecycle events to pub, which may
// be nil.
func NewClient(transport Transport, pub pubsub.Publisher[events.ExchangeEvent]) *Client {
	return &Client{transport: transport, pub: pub}
}

// Start ends any outstanding exchange, waits for its finalization, then
// opens a new one for req in the background. It returns the new epoch.
func (c *Client) Start(ctx context.Context, req *Request, h Handler) uint64 {
	c.control.Lock()
	defer c.control.Unlock()

	c.deliver.Lock()
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	prev := c.active
	c.mu.Unlock()
	c.deliver.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	rctx, cancel := context.WithCancel(ctx)
	r := &run{epoch: epoch, target: req.ID, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.active = r
	c.state = Connecting
	c.mu.Unlock()

	debug.Event("exchange", "start", fmt.Sprintf("epoch=%d target=%s model=%s", epoch, req.ID, req.Model))
	c.publish(events.NewExchangeStartedEvent(epoch, req.ID))
	go c.run(rctx, r, req, h)
	return epoch
}

// Cancel aborts the outstanding exchange and waits for its finalization.
// It is a no-op when nothing is running.
func (c *Client) Cancel() {
	c.control.Lock()
	defer c.control.Unlock()

	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return
	}

	c.deliver.Lock()
	r.cancel()
	c.deliver.Unlock()
	<-r.done
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an exchange is open and not yet terminated.
func (c *Client) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.state != Terminated
}

// Epoch returns the epoch of the most recently started exchange.
func (c *Client) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Client) setState(r *run, s State) {
	c.mu.Lock()
	if c.active != r {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.publish(events.NewExchangeStateEvent(r.epoch, r.target, s.String()))
}

func (c *Client) run(ctx context.Context, r *run, req *Request, h Handler) {
	var out Outcome
	defer func() {
		r.cancel()
		c.finalize(r, h, out)
	}()
	out = Outcome{Epoch: r.epoch, TargetID: r.target}

	stream, err := c.transport.Open(ctx, req)
	if err != nil {
		out.Cancelled, out.Err = classify(ctx, fmt.Errorf("opening stream: %w", err))
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			debug.Error("exchange", err, "closing stream")
		}
	}()

	if err := stream.Send(ctx, req); err != nil {
		out.Cancelled, out.Err = classify(ctx, fmt.Errorf("sending request: %w", err))
		return
	}
	c.setState(r, Awaiting)

	receiving := false
	for {
		msg, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			out.Cancelled, out.Err = classify(ctx, fmt.Errorf("receiving: %w", err))
			return
		}
		if !receiving {
			receiving = true
			c.setState(r, Receiving)
		}
		msg.ID = r.target
		if err := c.deliverUpdate(ctx, r, h, msg); err != nil {
			out.Err = err
			return
		}
	}
}

// deliverUpdate hands msg to the handler unless the exchange was superseded
// or cancelled.
func (c *Client) deliverUpdate(ctx context.Context, r *run, h Handler, msg *chat.Message) error {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	current := c.epoch == r.epoch
	c.mu.Unlock()
	if !current || ctx.Err() != nil {
		return nil
	}

	if err := h.OnUpdate(r.epoch, msg); err != nil {
		return err
	}
	c.publish(events.NewExchangeProgressEvent(r.epoch, r.target, msg.Content, msg.CostUSD))
	return nil
}

func (c *Client) finalize(r *run, h Handler, out Outcome) {
	c.mu.Lock()
	if c.active == r {
		c.state = Terminated
	}
	c.mu.Unlock()

	switch {
	case out.Cancelled:
		debug.Event("exchange", "cancelled", fmt.Sprintf("epoch=%d", r.epoch))
	case out.Err != nil:
		debug.Error("exchange", out.Err, fmt.Sprintf("epoch=%d target=%s", r.epoch, r.target))
	default:
		debug.Event("exchange", "completed", fmt.Sprintf("epoch=%d", r.epoch))
	}

	h.OnTerminate(out)

	c.mu.Lock()
	if c.active == r {
		c.active = nil
		c.state = Idle
	}
	c.mu.Unlock()

	c.publish(events.NewExchangeTerminatedEvent(r.epoch, r.target, out.Cancelled, out.Err))
	close(r.done)
}

// classify separates cancellation from failure.
func classify(ctx context.Context, err error) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	return false, err
}

func (c *Client) publish(ev events.ExchangeEvent) {
	if c.pub == nil {
		return
	}
	typ := pubsub.EventUpdated
	switch ev.Type {
	case events.ExchangeEventStarted:
		typ = pubsub.EventStarted
	case events.ExchangeEventProgress:
		typ = pubsub.EventProgress
	case events.ExchangeEventCompleted, events.ExchangeEventCancelled:
		typ = pubsub.EventCompleted
	case events.ExchangeEventFailed:
		typ = pubsub.EventFailed
	}
	c.pub.Publish(typ, ev)
}
