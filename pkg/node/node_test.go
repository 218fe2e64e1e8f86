package node_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/control"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/node"
	"github.com/cuemby/arcflow/pkg/state"
	"github.com/cuemby/arcflow/pkg/state/memstate"
)

// doubler doubles every element and never produces watermark-time
// output of its own.
type doubler struct{}

func (doubler) OnElement(_ state.Column, in int, _ uint64, _ bool) ([]int, error) {
	return []int{in * 2}, nil
}
func (doubler) OnWatermark(state.Column, uint64) ([]int, error) { return nil, nil }

func collectOutput(t *testing.T, mailbox chan event.Event[int], n int, timeout time.Duration) []event.Event[int] {
	t.Helper()
	var out []event.Event[int]
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case ev := <-mailbox:
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}

func TestNodeDoublesElementsAndForwardsDownstream(t *testing.T) {
	sinkMailbox := make(chan event.Event[int], 8)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", sinkMailbox))

	n, err := node.New[int, int](1, []event.NodeID{10}, doubler{}, strategy, memstate.New(), "col", nil, 0, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = n.Run(ctx) }()

	n.InputChannel(10) <- event.NewElement(21, 100, true)

	out := collectOutput(t, sinkMailbox, 1, time.Second)
	require.Equal(t, 42, out[0].Payload)

	cancel()
	wg.Wait()
}

func TestNodeAlignsWatermarkAcrossInputs(t *testing.T) {
	sinkMailbox := make(chan event.Event[int], 8)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", sinkMailbox))

	n, err := node.New[int, int](1, []event.NodeID{10, 20}, doubler{}, strategy, memstate.New(), "col", nil, 0, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = n.Run(ctx) }()

	n.InputChannel(10) <- event.NewWatermark[int](5)
	time.Sleep(20 * time.Millisecond) // no watermark has been forwarded yet
	n.InputChannel(20) <- event.NewWatermark[int](3)

	out := collectOutput(t, sinkMailbox, 1, time.Second)
	require.True(t, out[0].IsWatermark())
	require.Equal(t, uint64(3), out[0].WatermarkTime)

	cancel()
	wg.Wait()
}

func TestNodeBarrierAlignsEpochAcrossInputs(t *testing.T) {
	sinkMailbox := make(chan event.Event[int], 8)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", sinkMailbox))

	n, err := node.New[int, int](1, []event.NodeID{10, 20}, doubler{}, strategy, memstate.New(), "col", nil, 0, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = n.Run(ctx) }()

	n.InputChannel(10) <- event.NewEpoch[int](1)
	// input 10 has crossed the barrier, so this element belongs to the
	// next epoch and must be buffered, not dispatched yet
	n.InputChannel(10) <- event.NewElement(5, 2, true)
	time.Sleep(20 * time.Millisecond)
	// input 20 hasn't crossed the barrier yet; delivering its epoch
	// completes alignment
	n.InputChannel(20) <- event.NewEpoch[int](1)

	out := collectOutput(t, sinkMailbox, 2, time.Second)
	require.True(t, out[0].IsEpoch())
	require.Equal(t, uint64(1), out[0].EpochID)
	require.True(t, out[1].IsElement())
	require.Equal(t, 10, out[1].Payload)

	cancel()
	wg.Wait()
}

func TestNodeReportsModuleRunErrorAfterThreshold(t *testing.T) {
	sinkMailbox := make(chan event.Event[int], 8)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", sinkMailbox))
	busCh := make(chan control.NodeEvent, 8)

	n, err := node.New[int, int](1, []event.NodeID{10}, failingFunc{}, strategy, memstate.New(), "col", chanSender{busCh}, 2, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- n.Run(ctx) }()

	n.InputChannel(10) <- event.NewElement(1, 1, true)
	n.InputChannel(10) <- event.NewElement(1, 2, true)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected node to halt after error threshold")
	}
	cancel()
}

type failingFunc struct{}

func (failingFunc) OnElement(state.Column, int, uint64, bool) ([]int, error) {
	return nil, assertErr{}
}
func (failingFunc) OnWatermark(state.Column, uint64) ([]int, error) { return nil, nil }

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

type chanSender struct{ ch chan control.NodeEvent }

func (c chanSender) Send(ev control.NodeEvent) {
	select {
	case c.ch <- ev:
	default:
	}
}
