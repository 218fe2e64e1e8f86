/*
Package manager implements the node manager of spec section 4.5: one
manager per pipeline stage, owning a set of nodes for lifecycle
control, aggregating their Metrics control-port reports, and
propagating Update/Reconfig events to the neighboring stage managers.

A manager never reaches into an owned node's internal state (spec
section 3's ownership rule) — it only holds a NodeHandle for lifecycle
control and the latest metrics snapshot reported over the control
port.
*/
package manager

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/control"
	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// NodeHandle is the lifecycle surface a manager holds for one owned
// node.
type NodeHandle interface {
	ID() event.NodeID
	Stop()
}

type nodeRecord struct {
	handle   NodeHandle
	metrics  map[string]float64
	lastSeen time.Time
}

// Config controls one NodeManager's parallelism bounds and liveness
// policy.
type Config struct {
	// NodeParallelism is the stage's starting instance count.
	NodeParallelism int
	// MaxNodeParallelism bounds NodeParallelism; 0 defaults to 2x the
	// host's CPU count, per spec section 4.5.
	MaxNodeParallelism int
	// HeartbeatTimeout is the max gap tolerated between Metrics
	// reports before a node is logged as unresponsive. 0 disables the
	// liveness monitor.
	HeartbeatTimeout time.Duration
}

// NodeManager owns the nodes of one pipeline stage.
type NodeManager struct {
	mu    sync.RWMutex
	nodes map[event.NodeID]*nodeRecord

	nodeParallelism    int
	maxNodeParallelism int
	heartbeatTimeout   time.Duration

	inbox chan control.NodeEvent

	prevManager control.Sender
	nextManager control.Sender

	logger zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a NodeManager.
func New(cfg Config, logger zerolog.Logger) *NodeManager {
	max := cfg.MaxNodeParallelism
	if max <= 0 {
		max = 2 * runtime.NumCPU()
	}
	return &NodeManager{
		nodes:              make(map[event.NodeID]*nodeRecord),
		nodeParallelism:    cfg.NodeParallelism,
		maxNodeParallelism: max,
		heartbeatTimeout:   cfg.HeartbeatTimeout,
		inbox:              make(chan control.NodeEvent, 256),
		logger:             logger,
		stop:               make(chan struct{}),
	}
}

// managerSender adapts a NodeManager's inbox into the one-way
// control.Sender handle a node is constructed with, per spec section
// 9's no-reference-cycle design note: the node holds this handle, not
// a pointer back to the NodeManager itself.
type managerSender struct{ m *NodeManager }

func (s managerSender) Send(ev control.NodeEvent) {
	select {
	case s.m.inbox <- ev:
	case <-s.m.stop:
	}
}

// Inbox returns the control.Sender a node under this manager's stage
// should be constructed with.
func (m *NodeManager) Inbox() control.Sender { return managerSender{m} }

// SetPrevManager / SetNextManager wire one-way references to the
// neighboring stage's manager, used only to relay Update/Reconfig.
func (m *NodeManager) SetPrevManager(s control.Sender) { m.prevManager = s }
func (m *NodeManager) SetNextManager(s control.Sender) { m.nextManager = s }

// Register adds a node under this manager's lifecycle control.
func (m *NodeManager) Register(handle NodeHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[handle.ID()] = &nodeRecord{handle: handle, metrics: make(map[string]float64), lastSeen: time.Now()}
}

// Unregister stops tracking a node. Callers that want the node torn
// down call Stop on its handle themselves and then Unregister.
func (m *NodeManager) Unregister(id event.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
}

// Metrics returns a copy of the latest metrics reported for id.
func (m *NodeManager) Metrics(id event.NodeID) (map[string]float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.nodes[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(rec.metrics))
	for k, v := range rec.metrics {
		out[k] = v
	}
	return out, true
}

// NodeParallelism reports the stage's current and max instance count.
func (m *NodeManager) NodeParallelism() (current, max int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodeParallelism, m.maxNodeParallelism
}

// RequestScale is a design hook for spawning/retiring node instances
// under load (spec section 4.5): it only validates the request
// against max_node_parallelism and updates the bookkeeping counter.
// There is no automatic control loop here — the caller is responsible
// for actually constructing or stopping node instances and calling
// Register/Unregister to match.
func (m *NodeManager) RequestScale(delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.nodeParallelism + delta
	if next < 1 || next > m.maxNodeParallelism {
		return errs.New(errs.BadTaskError, "manager.RequestScale: requested parallelism out of bounds")
	}
	m.nodeParallelism = next
	return nil
}

// Run processes inbound NodeEvents and, if configured, polls node
// liveness until ctx is cancelled or Stop is called.
func (m *NodeManager) Run(ctx context.Context) error {
	var tickC <-chan time.Time
	if m.heartbeatTimeout > 0 {
		ticker := time.NewTicker(m.heartbeatTimeout / 2)
		defer ticker.Stop()
		tickC = ticker.C
	}
	for {
		select {
		case ev := <-m.inbox:
			m.handle(ev)
		case <-tickC:
			m.checkLiveness()
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		}
	}
}

// Stop halts Run after its current iteration.
func (m *NodeManager) Stop() { m.stopOnce.Do(func() { close(m.stop) }) }

func (m *NodeManager) handle(ev control.NodeEvent) {
	switch ev.Kind {
	case control.Metrics:
		m.mu.Lock()
		if rec, ok := m.nodes[ev.NodeID]; ok {
			for k, v := range ev.MetricValues {
				rec.metrics[k] = v
			}
			rec.lastSeen = time.Now()
		}
		m.mu.Unlock()
	case control.Update, control.Reconfig:
		if m.prevManager != nil {
			m.prevManager.Send(ev)
		}
		if m.nextManager != nil {
			m.nextManager.Send(ev)
		}
	}
}

// checkLiveness logs nodes whose last Metrics report is older than
// heartbeatTimeout. Per spec section 4.5, a missed heartbeat is logged
// and the manager continues — upstream lifecycle management of a
// failed node is out of scope.
func (m *NodeManager) checkLiveness() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	for id, rec := range m.nodes {
		if now.Sub(rec.lastSeen) > m.heartbeatTimeout {
			m.logger.Warn().Uint32("node_id", uint32(id)).Msg("node heartbeat missed, continuing per manager policy")
		}
	}
}
