package channel

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/event"
)

// Strategy routes one outbound event to one or more Channels. Per spec
// section 4.1, control events (Watermark, Epoch, End) are always
// broadcast to every target regardless of the strategy's data-event
// routing policy.
type Strategy[T any] interface {
	Output(ev event.Event[T]) error
	AddChannel(ch Channel[T])
	RemoveChannel(id string)
}

// base holds the channel list shared by every strategy implementation,
// guarded by a mutex since add_channel/remove_channel are dynamic
// reconfiguration operations that can race with Output.
type base[T any] struct {
	mu     sync.RWMutex
	chs    []Channel[T]
	logger zerolog.Logger
}

func newBase[T any](logger zerolog.Logger, chs []Channel[T]) base[T] {
	return base[T]{chs: append([]Channel[T]{}, chs...), logger: logger}
}

func (b *base[T]) AddChannel(ch Channel[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chs = append(b.chs, ch)
}

func (b *base[T]) RemoveChannel(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.chs {
		if ch.ID == id {
			b.chs = append(b.chs[:i], b.chs[i+1:]...)
			return
		}
	}
}

func (b *base[T]) snapshot() []Channel[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Channel[T]{}, b.chs...)
}

// broadcastAll delivers ev to every channel. A single target's failure
// is logged and does not stop delivery to the rest — broadcast is not
// atomic across targets, per spec section 4.1.
func broadcastAll[T any](chs []Channel[T], ev event.Event[T], logger zerolog.Logger) error {
	var firstErr error
	for _, ch := range chs {
		if err := send(ch, ev); err != nil {
			logger.Error().Err(err).Str("channel_id", ch.ID).Msg("channel delivery failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// isControl reports whether ev must bypass data-event partitioning and
// go to every downstream channel.
func isControl[T any](ev event.Event[T]) bool {
	return ev.Kind != event.KindElement
}
