package channel

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// KeyFunc extracts the partitioning key from an element's payload.
type KeyFunc[T any] func(T) uint64

// KeyBy routes each element to hash(key) % len(channels); control
// events are broadcast to every target.
type KeyBy[T any] struct {
	base[T]
	keyFn KeyFunc[T]
}

func NewKeyBy[T any](logger zerolog.Logger, keyFn KeyFunc[T], chs ...Channel[T]) *KeyBy[T] {
	return &KeyBy[T]{base: newBase(logger, chs), keyFn: keyFn}
}

func (k *KeyBy[T]) Output(ev event.Event[T]) error {
	chs := k.snapshot()
	if len(chs) == 0 {
		return errs.New(errs.BadTaskError, "keyby.Output: no channels configured")
	}
	if isControl(ev) {
		return broadcastAll(chs, ev, k.logger)
	}
	idx := k.keyFn(ev.Payload) % uint64(len(chs))
	return send(chs[idx], ev)
}
