package window

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/state"
)

// FuncAdapter structurally satisfies node.Func[T, OUT]: it hosts an
// Assigner and buffers the outputs each fired window produces so a
// node can route them through its own channel strategy, rather than
// the Assigner holding a Sink of its own. Its state.Column argument is
// accepted to match node.Func's signature but unused — the assigner
// keeps its own in-memory window state, independent of the node's
// durable state.Column.
type FuncAdapter[T, OUT any] struct {
	assigner *Assigner[T, OUT]
	buf      []OUT
}

// NewFuncAdapter builds a FuncAdapter around a fresh Assigner.
func NewFuncAdapter[T, OUT any](cfg Config, keyFn KeyFunc[T], newBuilder BuilderFactory[T, OUT], logger zerolog.Logger) (*FuncAdapter[T, OUT], error) {
	fa := &FuncAdapter[T, OUT]{}
	a, err := New(cfg, keyFn, newBuilder, fa, logger)
	if err != nil {
		return nil, err
	}
	fa.assigner = a
	return fa, nil
}

// EmitElement satisfies Sink: it buffers out for the next OnWatermark
// call to return.
func (fa *FuncAdapter[T, OUT]) EmitElement(out OUT, _ uint64) error {
	fa.buf = append(fa.buf, out)
	return nil
}

// EmitWatermark satisfies Sink. Watermark forwarding is the hosting
// node's responsibility, not the assigner's, so this is a no-op.
func (fa *FuncAdapter[T, OUT]) EmitWatermark(uint64) error { return nil }

// OnElement feeds x into the assigner and returns any outputs produced
// (always empty — windows only fire on a watermark).
func (fa *FuncAdapter[T, OUT]) OnElement(_ state.Column, x T, timestamp uint64, _ bool) ([]OUT, error) {
	fa.buf = fa.buf[:0]
	err := fa.assigner.OnElement(x, timestamp)
	return fa.buf, err
}

// OnWatermark advances the assigner and returns every window result
// fired as a consequence.
func (fa *FuncAdapter[T, OUT]) OnWatermark(_ state.Column, ts uint64) ([]OUT, error) {
	fa.buf = fa.buf[:0]
	err := fa.assigner.OnWatermark(ts)
	return fa.buf, err
}

// Stats satisfies node.StatsReporter, surfacing the hosted assigner's
// admission and firing counters through the node's control-port report.
func (fa *FuncAdapter[T, OUT]) Stats() map[string]float64 {
	return fa.assigner.Stats()
}
