package channel

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// Shuffle selects a uniformly random target for each data event;
// control events are broadcast to every target.
type Shuffle[T any] struct {
	base[T]
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewShuffle[T any](logger zerolog.Logger, seed int64, chs ...Channel[T]) *Shuffle[T] {
	return &Shuffle[T]{base: newBase(logger, chs), rng: rand.New(rand.NewSource(seed))}
}

func (s *Shuffle[T]) Output(ev event.Event[T]) error {
	chs := s.snapshot()
	if len(chs) == 0 {
		return errs.New(errs.BadTaskError, "shuffle.Output: no channels configured")
	}
	if isControl(ev) {
		return broadcastAll(chs, ev, s.logger)
	}
	s.rngMu.Lock()
	idx := s.rng.Intn(len(chs))
	s.rngMu.Unlock()
	return send(chs[idx], ev)
}
