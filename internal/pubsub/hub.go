package pubsub

import (
	"fmt"
	"strings"
	"sync"

	"github.com/guilhermegouw/parley/internal/events"
)

// Hub is the central container for all domain brokers.
type Hub struct { //nolint:govet // fieldalignment: preserving logical field order
	State    *Broker[events.StateEvent]
	Exchange *Broker[events.ExchangeEvent]
	Auth     *Broker[events.AuthEvent]
	Persist  *Broker[events.PersistEvent]

	done chan struct{}
	once sync.Once
}

// NewHub creates a new Hub with all domain brokers initialized.
func NewHub() *Hub {
	return &Hub{
		State:    NewBroker[events.StateEvent]("state"),
		Exchange: NewBroker[events.ExchangeEvent]("exchange", WithBufferSize[events.ExchangeEvent](256)),
		Auth:     NewBroker[events.AuthEvent]("auth"),
		Persist:  NewBroker[events.PersistEvent]("persist"),
		done:     make(chan struct{}),
	}
}

// Shutdown closes every broker. Calling it twice is safe.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		close(h.done)

		var wg sync.WaitGroup
		wg.Add(4)
		go func() { defer wg.Done(); h.State.Shutdown() }()
		go func() { defer wg.Done(); h.Exchange.Shutdown() }()
		go func() { defer wg.Done(); h.Auth.Shutdown() }()
		go func() { defer wg.Done(); h.Persist.Shutdown() }()
		wg.Wait()
	})
}

// IsShutdown returns true if the hub has been shut down.
func (h *Hub) IsShutdown() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that's closed when the hub is shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// AllMetrics returns metrics for all brokers.
func (h *Hub) AllMetrics() []BrokerMetrics {
	return []BrokerMetrics{
		h.State.Metrics(),
		h.Exchange.Metrics(),
		h.Auth.Metrics(),
		h.Persist.Metrics(),
	}
}

// DebugString returns a formatted debug string for all brokers.
func (h *Hub) DebugString() string {
	var b strings.Builder
	b.WriteString("=== PubSub Brokers ===\n")
	for _, m := range h.AllMetrics() {
		fmt.Fprintf(&b, "%-10s subs=%d published=%d dropped=%d\n",
			m.Name, m.SubscriberCount, m.PublishCount, m.DropCount)
	}
	return b.String()
}
