package channel

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/event"
)

// Broadcast clones every event to every target, data and control
// alike.
type Broadcast[T any] struct {
	base[T]
}

func NewBroadcast[T any](logger zerolog.Logger, chs ...Channel[T]) *Broadcast[T] {
	return &Broadcast[T]{base: newBase(logger, chs)}
}

func (b *Broadcast[T]) Output(ev event.Event[T]) error {
	return broadcastAll(b.snapshot(), ev, b.logger)
}
