/*
Package source implements the source driver of spec section 4.6: a
component hosting exactly one Source and running its loopback
protocol — Start triggers a self-message, which calls ProcessBatch and
either re-triggers itself or signals End — plus a watermark injector
ticker, owned separately from the driver per spec section 4.6 ("not the
driver itself").

The original drives this loopback through a component port wired back
to itself (a cyclic port reference). Per spec section 9's redesign
note, this rewrite uses a buffered self-channel instead: the driver
holds its own send and receive ends of one channel, which is a
one-way mailbox handle, not a pointer cycle.
*/
package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/control"
	"github.com/cuemby/arcflow/pkg/event"
)

// Context is handed to Source.ProcessBatch for one batch. Output
// records a produced element; SignalEnd marks the source exhausted.
type Context[T any] struct {
	emit  func(T)
	ended bool
}

func (c *Context[T]) Output(x T) { c.emit(x) }
func (c *Context[T]) SignalEnd() { c.ended = true }

// Source is a pull-based producer of T. ProcessBatch must bound its
// own work (e.g. draining at most a few thousand records) so the
// driver yields cooperatively between batches, per spec section 4.6.
type Source[T any] interface {
	ProcessBatch(ctx *Context[T])
}

// TimestampExtractor pulls an event-time timestamp out of a payload.
// A nil extractor means the driver tracks only process time.
type TimestampExtractor[T any] func(T) (uint64, bool)

// Driver hosts exactly one Source and drives its loopback protocol.
type Driver[T any] struct {
	source      Source[T]
	strategy    channel.Strategy[T]
	extractTime TimestampExtractor[T]
	manager     control.Sender
	logger      zerolog.Logger

	watermark uint64 // atomic: last observed event-time timestamp

	loopback chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a Driver around source, routing its output through
// strategy.
func New[T any](source Source[T], strategy channel.Strategy[T], extractTime TimestampExtractor[T], manager control.Sender, logger zerolog.Logger) *Driver[T] {
	return &Driver[T]{
		source:      source,
		strategy:    strategy,
		extractTime: extractTime,
		manager:     manager,
		logger:      logger,
		loopback:    make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

// Stop halts the driver after its current batch.
func (d *Driver[T]) Stop() { d.stopOnce.Do(func() { close(d.stop) }) }

// Run implements the Start/ProcessSource loopback: Start triggers one
// self-message, and each ProcessSource either re-triggers itself or
// emits End and returns.
func (d *Driver[T]) Run(ctx context.Context) error {
	d.loopback <- struct{}{} // Start

	for {
		select {
		case <-d.loopback:
			ended := d.processBatch()
			if ended {
				if err := d.strategy.Output(event.NewEnd[T]()); err != nil {
					d.logger.Error().Err(err).Msg("failed to emit end downstream")
				}
				if d.manager != nil {
					d.manager.Send(control.NodeEvent{Kind: control.Update})
				}
				return nil
			}
			select {
			case d.loopback <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			case <-d.stop:
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		}
	}
}

func (d *Driver[T]) processBatch() bool {
	sctx := &Context[T]{}
	sctx.emit = func(x T) {
		if d.extractTime != nil {
			if ts, ok := d.extractTime(x); ok {
				atomic.StoreUint64(&d.watermark, ts)
			}
		}
		if err := d.strategy.Output(event.NewElement(x, atomic.LoadUint64(&d.watermark), d.extractTime != nil)); err != nil {
			d.logger.Error().Err(err).Msg("failed to emit source record downstream")
		}
	}
	d.source.ProcessBatch(sctx)
	return sctx.ended
}

// EmitWatermark sends a Watermark downstream: the driver's tracked
// event-time cursor if useEventTime, else the wall clock in Unix
// milliseconds. Called by a
// WatermarkInjector on a fixed interval, never by the driver's own
// loop, per spec section 4.6.
func (d *Driver[T]) EmitWatermark(useEventTime bool) error {
	var ts uint64
	if useEventTime {
		ts = atomic.LoadUint64(&d.watermark)
	} else {
		ts = uint64(time.Now().UnixMilli())
	}
	return d.strategy.Output(event.NewWatermark[T](ts))
}
