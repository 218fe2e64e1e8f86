/*
Package node implements the operator node of spec section 4.2: a
stateful actor coupling an operator Func with per-input watermark
alignment, epoch barrier alignment, and a single outbound channel
strategy. Each node is single-threaded per instance and cooperative
between instances (spec section 5) — one serial loop drains a fan-in
of per-input mailboxes, so a handler is never entered concurrently with
another and never blocks on anything but channel sends.
*/
package node

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/control"
	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/state"
)

// Func is the operator function a Node hosts. It is handed the node's
// own state column and returns the outputs produced, for the node to
// route through its channel strategy — the node, not Func, owns
// delivery.
type Func[IN, OUT any] interface {
	OnElement(st state.Column, in IN, timestamp uint64, hasTimestamp bool) ([]OUT, error)
	OnWatermark(st state.Column, ts uint64) ([]OUT, error)
}

// StatsReporter is an optional capability a Func implementation can
// satisfy to surface its own cumulative counters (e.g. window
// admission/firing counts) alongside the module_run_errors metric the
// node already reports on every Func failure.
type StatsReporter interface {
	Stats() map[string]float64
}

// Inbound tags an incoming event with the input it arrived on, so the
// node can align watermarks and epochs per spec section 4.2.
type Inbound[IN any] struct {
	From event.NodeID
	Ev   event.Event[IN]
}

// Node is one operator instance.
type Node[IN, OUT any] struct {
	id     event.NodeID
	inputs map[event.NodeID]chan event.Event[IN]

	f        Func[IN, OUT]
	strategy channel.Strategy[OUT]
	col      state.Column
	backend  state.Backend
	manager  control.Sender
	logger   zerolog.Logger

	errThreshold uint64

	internal chan Inbound[IN]
	stop     chan struct{}
	stopOnce sync.Once

	inputWatermarks map[event.NodeID]uint64
	lastForwarded   uint64
	hasForwarded    bool

	currentEpoch  uint64
	epochStarted  bool
	epochArrived  map[event.NodeID]bool
	epochBuffered map[event.NodeID][]Inbound[IN]

	endArrived map[event.NodeID]bool

	errCount uint64
}

// New constructs a Node over the given input ids. columnName selects
// the state.Column the node's Func operates on within backend.
func New[IN, OUT any](
	id event.NodeID,
	inputIDs []event.NodeID,
	f Func[IN, OUT],
	strategy channel.Strategy[OUT],
	backend state.Backend,
	columnName string,
	manager control.Sender,
	errThreshold uint64,
	logger zerolog.Logger,
) (*Node[IN, OUT], error) {
	col, err := backend.Open(columnName)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "node.New: open column", err)
	}

	n := &Node[IN, OUT]{
		id:              id,
		inputs:          make(map[event.NodeID]chan event.Event[IN], len(inputIDs)),
		f:               f,
		strategy:        strategy,
		col:             col,
		backend:         backend,
		manager:         manager,
		logger:          logger,
		errThreshold:    errThreshold,
		internal:        make(chan Inbound[IN], 256),
		stop:            make(chan struct{}),
		inputWatermarks: make(map[event.NodeID]uint64, len(inputIDs)),
	}
	for _, in := range inputIDs {
		n.inputs[in] = make(chan event.Event[IN], 256)
	}
	return n, nil
}

// ID returns the node's identity.
func (n *Node[IN, OUT]) ID() event.NodeID { return n.id }

// InputChannel returns the mailbox for input id, for an upstream
// strategy to target with channel.NewLocal.
func (n *Node[IN, OUT]) InputChannel(id event.NodeID) chan event.Event[IN] {
	return n.inputs[id]
}

// Stop finishes the current message, flushes no additional events, and
// releases the node's goroutines. There is no guaranteed-delivery
// shutdown, per spec section 5.
func (n *Node[IN, OUT]) Stop() {
	n.stopOnce.Do(func() { close(n.stop) })
}

// Run drains every input mailbox into one serial processing loop until
// ctx is cancelled, Stop is called, or every input has signalled End.
func (n *Node[IN, OUT]) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for id, ch := range n.inputs {
		wg.Add(1)
		go n.forward(&wg, id, ch)
	}
	defer wg.Wait()

	for {
		select {
		case in := <-n.internal:
			if err := n.handle(in); err != nil {
				n.Stop()
				return err
			}
		case <-ctx.Done():
			n.Stop()
			return ctx.Err()
		case <-n.stop:
			return nil
		}
	}
}

func (n *Node[IN, OUT]) forward(wg *sync.WaitGroup, id event.NodeID, ch chan event.Event[IN]) {
	defer wg.Done()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			select {
			case n.internal <- Inbound[IN]{From: id, Ev: ev}:
			case <-n.stop:
				return
			}
		case <-n.stop:
			return
		}
	}
}

func (n *Node[IN, OUT]) handle(in Inbound[IN]) error {
	if in.Ev.Kind == event.KindEpoch {
		return n.handleEpoch(in)
	}
	if n.buffering(in.From) {
		n.epochBuffered[in.From] = append(n.epochBuffered[in.From], in)
		return nil
	}
	return n.dispatch(in)
}

// buffering reports whether an event arriving on from belongs to the
// next epoch and must wait: once an input has delivered Epoch(id), any
// further events on that input are past the barrier, while inputs that
// haven't yet delivered it are still sending pre-barrier data for the
// current epoch and must be dispatched immediately so their effects
// land in the snapshot.
func (n *Node[IN, OUT]) buffering(from event.NodeID) bool {
	if !n.epochStarted {
		return false
	}
	return n.epochArrived[from]
}

func (n *Node[IN, OUT]) dispatch(in Inbound[IN]) error {
	switch in.Ev.Kind {
	case event.KindElement:
		return n.handleElement(in)
	case event.KindWatermark:
		return n.handleWatermark(in)
	case event.KindEnd:
		return n.handleEnd(in)
	default:
		return nil
	}
}

// handleElement implements spec section 4.2's Element rule: invoke F,
// route every output through the channel strategy. A failure is a
// ModuleRunError on the dropped element; the node only halts once
// errThreshold consecutive failures accumulate (0 disables the
// threshold).
func (n *Node[IN, OUT]) handleElement(in Inbound[IN]) error {
	outs, err := n.f.OnElement(n.col, in.Ev.Payload, in.Ev.Timestamp, in.Ev.HasTimestamp)
	if err != nil {
		n.errCount++
		wrapped := errs.Wrap(errs.ModuleRunError, "node.handleElement", err)
		n.logger.Error().Err(wrapped).Uint32("node_id", uint32(n.id)).Msg("element dropped")
		n.reportMetric(map[string]float64{"module_run_errors": float64(n.errCount)})
		if n.errThreshold > 0 && n.errCount >= n.errThreshold {
			return wrapped
		}
		return nil
	}
	n.errCount = 0
	for _, out := range outs {
		if err := n.strategy.Output(event.NewElement(out, in.Ev.Timestamp, in.Ev.HasTimestamp)); err != nil {
			n.logger.Error().Err(err).Msg("failed to emit element downstream")
		}
	}
	n.reportFuncStats()
	return nil
}

// handleWatermark implements the alignment contract of spec section
// 4.2: forward the minimum watermark across all inputs, exactly once
// per advance.
func (n *Node[IN, OUT]) handleWatermark(in Inbound[IN]) error {
	n.inputWatermarks[in.From] = in.Ev.WatermarkTime
	if len(n.inputWatermarks) < len(n.inputs) {
		return nil
	}

	min := uint64(math.MaxUint64)
	for _, w := range n.inputWatermarks {
		if w < min {
			min = w
		}
	}
	if n.hasForwarded && min <= n.lastForwarded {
		return nil
	}

	outs, err := n.f.OnWatermark(n.col, min)
	if err != nil {
		n.logger.Error().Err(err).Uint32("node_id", uint32(n.id)).Msg("watermark handling failed")
	}
	for _, out := range outs {
		if err := n.strategy.Output(event.NewElement(out, min, true)); err != nil {
			n.logger.Error().Err(err).Msg("failed to emit window result downstream")
		}
	}
	if err := n.strategy.Output(event.NewWatermark[OUT](min)); err != nil {
		n.logger.Error().Err(err).Msg("failed to forward watermark")
	}
	n.lastForwarded = min
	n.hasForwarded = true
	n.reportFuncStats()
	n.reportMetric(map[string]float64{"watermark_lag_seconds": watermarkLagSeconds(min)})
	return nil
}

// watermarkLagSeconds reports the gap between wall-clock time and an
// event-time watermark, both in milliseconds; a watermark ahead of the
// wall clock (e.g. replayed historical data) reports zero rather than
// a negative lag.
func watermarkLagSeconds(watermarkMS uint64) float64 {
	now := uint64(time.Now().UnixMilli())
	if watermarkMS >= now {
		return 0
	}
	return float64(now-watermarkMS) / 1000
}

// handleEpoch implements the barrier-alignment protocol of spec
// section 4.2: buffer per input until every input reports epoch id,
// then snapshot state, emit Epoch downstream, and replay what was
// buffered.
func (n *Node[IN, OUT]) handleEpoch(in Inbound[IN]) error {
	if !n.epochStarted || in.Ev.EpochID != n.currentEpoch {
		if n.epochStarted && in.Ev.EpochID < n.currentEpoch {
			n.logger.Warn().Uint64("epoch_id", uint64(in.Ev.EpochID)).Msg("epoch id went backwards, ignoring")
			return nil
		}
		n.currentEpoch = in.Ev.EpochID
		n.epochStarted = true
		n.epochArrived = make(map[event.NodeID]bool, len(n.inputs))
		n.epochBuffered = make(map[event.NodeID][]Inbound[IN], len(n.inputs))
	}
	n.epochArrived[in.From] = true
	if len(n.epochArrived) < len(n.inputs) {
		return nil
	}

	if n.backend != nil {
		if _, err := n.backend.Snapshot(n.currentEpoch); err != nil {
			n.logger.Error().Err(err).Uint64("epoch_id", n.currentEpoch).Msg("epoch snapshot failed")
		}
	}
	if err := n.strategy.Output(event.NewEpoch[OUT](n.currentEpoch)); err != nil {
		n.logger.Error().Err(err).Msg("failed to emit epoch downstream")
	}

	buffered := n.epochBuffered
	n.epochStarted = false
	n.epochArrived = nil
	n.epochBuffered = nil

	for _, pending := range buffered {
		for _, b := range pending {
			if err := n.dispatch(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleEnd waits for every input to signal End before forwarding it
// downstream exactly once and stopping the node.
func (n *Node[IN, OUT]) handleEnd(in Inbound[IN]) error {
	if n.endArrived == nil {
		n.endArrived = make(map[event.NodeID]bool, len(n.inputs))
	}
	n.endArrived[in.From] = true
	if len(n.endArrived) < len(n.inputs) {
		return nil
	}
	if err := n.strategy.Output(event.NewEnd[OUT]()); err != nil {
		n.logger.Error().Err(err).Msg("failed to forward end downstream")
	}
	n.Stop()
	return nil
}

func (n *Node[IN, OUT]) reportMetric(values map[string]float64) {
	if n.manager == nil {
		return
	}
	n.manager.Send(control.NodeEvent{NodeID: n.id, Kind: control.Metrics, MetricValues: values})
}

// reportFuncStats forwards the hosted Func's own counters, if it
// implements StatsReporter, alongside the generic metrics above.
func (n *Node[IN, OUT]) reportFuncStats() {
	sr, ok := n.f.(StatsReporter)
	if !ok {
		return
	}
	n.reportMetric(sr.Stats())
}
