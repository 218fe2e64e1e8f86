package channel

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// Forward sends every event to its single target. AddChannel replaces
// that target rather than adding a second one; Output fails with a
// BadTaskError when no target is left.
type Forward[T any] struct {
	base[T]
}

func NewForward[T any](logger zerolog.Logger, ch Channel[T]) *Forward[T] {
	return &Forward[T]{base: newBase(logger, []Channel[T]{ch})}
}

func (f *Forward[T]) Output(ev event.Event[T]) error {
	chs := f.snapshot()
	if len(chs) != 1 {
		return errs.New(errs.BadTaskError, "forward.Output: expected exactly one channel")
	}
	return send(chs[0], ev)
}

func (f *Forward[T]) AddChannel(ch Channel[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chs = []Channel[T]{ch}
}
