/*
Package control implements the node/manager control port of spec
section 6: NodeEvent messages (Metrics, Update, Reconfig) flowing from
nodes up to their manager, fanned out by a Bus adapted from the
publish/subscribe broker pattern used elsewhere in this codebase for
cluster events — here scoped to one manager's mailbox instead of many
cluster-wide subscribers.
*/
package control

import (
	"sync"

	"github.com/cuemby/arcflow/pkg/event"
)

// Kind discriminates the three NodeEvent variants of spec section 6.
type Kind int

const (
	Metrics Kind = iota
	Update
	Reconfig
)

func (k Kind) String() string {
	switch k {
	case Metrics:
		return "Metrics"
	case Update:
		return "Update"
	case Reconfig:
		return "Reconfig"
	default:
		return "Unknown"
	}
}

// NodeEvent is one control-port message. MetricValues is populated only
// when Kind == Metrics.
type NodeEvent struct {
	NodeID       event.NodeID
	Kind         Kind
	MetricValues map[string]float64
}

// Sender is the one-way send handle a node holds to its manager's
// mailbox, or a manager holds to its prev/next manager — never a
// pointer back to the receiver's state (spec section 9's cyclic-graph
// design note).
type Sender interface {
	Send(ev NodeEvent)
}

// Bus fans NodeEvents out to every subscriber. A manager uses one Bus
// per direction it needs to broadcast Update/Reconfig to (e.g. to all
// owned nodes), while a node's own control messages to its manager go
// directly over a plain channel rather than through a Bus, since that
// edge has exactly one reader.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan NodeEvent]bool
	eventCh     chan NodeEvent
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBus returns a Bus and starts its distribution loop.
func NewBus() *Bus {
	b := &Bus{
		subscribers: make(map[chan NodeEvent]bool),
		eventCh:     make(chan NodeEvent, 128),
		stopCh:      make(chan struct{}),
	}
	go b.run()
	return b
}

// Stop halts distribution. Subsequent Publish calls are dropped.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a channel that receives every subsequently
// published NodeEvent.
func (b *Bus) Subscribe() chan NodeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan NodeEvent, 32)
	b.subscribers[ch] = true
	return ch
}

// Unsubscribe removes and closes a previously returned channel.
func (b *Bus) Unsubscribe(ch chan NodeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish enqueues ev for distribution to every current subscriber.
func (b *Bus) Publish(ev NodeEvent) {
	select {
	case b.eventCh <- ev:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.eventCh:
			b.mu.RLock()
			for sub := range b.subscribers {
				select {
				case sub <- ev:
				default:
					// slow subscriber: drop rather than block the bus.
				}
			}
			b.mu.RUnlock()
		case <-b.stopCh:
			return
		}
	}
}
