package channel

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// RoundRobin advances a cursor on every data event; control events are
// broadcast to every target.
type RoundRobin[T any] struct {
	base[T]
	cursor uint64
}

func NewRoundRobin[T any](logger zerolog.Logger, chs ...Channel[T]) *RoundRobin[T] {
	return &RoundRobin[T]{base: newBase(logger, chs)}
}

func (r *RoundRobin[T]) Output(ev event.Event[T]) error {
	chs := r.snapshot()
	if len(chs) == 0 {
		return errs.New(errs.BadTaskError, "roundrobin.Output: no channels configured")
	}
	if isControl(ev) {
		return broadcastAll(chs, ev, r.logger)
	}
	r.mu.Lock()
	idx := r.cursor % uint64(len(chs))
	r.cursor++
	r.mu.Unlock()
	return send(chs[idx], ev)
}
