package source_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/source"
)

func TestCollectionSourceDrainsAndSignalsEnd(t *testing.T) {
	mailbox := make(chan event.Event[int], 16)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", mailbox))

	coll := source.NewCollectionSource([]int{1, 2, 3})
	driver := source.New[int](coll, strategy, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = driver.Run(ctx) }()

	var got []int
	var sawEnd bool
	deadline := time.After(time.Second)
	for !sawEnd {
		select {
		case ev := <-mailbox:
			if ev.IsEnd() {
				sawEnd = true
				continue
			}
			got = append(got, ev.Payload)
		case <-deadline:
			t.Fatal("timed out waiting for End")
		}
	}
	require.Equal(t, []int{1, 2, 3}, got)
	wg.Wait()
}

func TestDriverExtractsEventTimeFromPayload(t *testing.T) {
	mailbox := make(chan event.Event[int], 16)
	strategy := channel.NewForward(zerolog.Nop(), channel.NewLocal("sink", mailbox))

	coll := source.NewCollectionSource([]int{100, 200})
	extractor := func(x int) (uint64, bool) { return uint64(x), true }
	driver := source.New[int](coll, strategy, extractor, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = driver.Run(ctx) }()

	first := <-mailbox
	require.True(t, first.HasTimestamp)
	require.Equal(t, uint64(100), first.Timestamp)

	// Let the driver finish its batch (Element 200, then End) so the
	// watermark is the next event in the mailbox.
	for ev := <-mailbox; !ev.IsEnd(); ev = <-mailbox {
	}

	require.NoError(t, driver.EmitWatermark(true))
	wm := <-mailbox
	require.True(t, wm.IsWatermark())
	require.Equal(t, uint64(200), wm.WatermarkTime)
}

type fakeEmitter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmitter) EmitWatermark(bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func TestWatermarkInjectorTicksOnInterval(t *testing.T) {
	fe := &fakeEmitter{}
	inj := source.NewWatermarkInjector(fe, 10*time.Millisecond, true, nil)
	inj.Start()
	time.Sleep(55 * time.Millisecond)
	inj.Stop()

	fe.mu.Lock()
	defer fe.mu.Unlock()
	require.GreaterOrEqual(t, fe.calls, 3)
}
