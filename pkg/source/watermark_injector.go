package source

import (
	"sync"
	"time"
)

// watermarkEmitter is the subset of Driver a WatermarkInjector depends
// on, so tests can inject a fake without spinning up a real Driver.
type watermarkEmitter interface {
	EmitWatermark(useEventTime bool) error
}

// WatermarkInjector periodically emits a watermark on behalf of a
// Driver, on a fixed interval, independent of the driver's own
// process-batch loop — this is the "source manager" role of spec
// section 4.6, kept as its own ticker rather than folded into the
// driver.
type WatermarkInjector struct {
	emitter      watermarkEmitter
	interval     time.Duration
	useEventTime bool
	onError      func(error)

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatermarkInjector builds an injector that calls emitter.EmitWatermark
// every interval. onError, if non-nil, is called with any error
// returned by EmitWatermark; a nil onError silently ignores failures.
func NewWatermarkInjector(emitter watermarkEmitter, interval time.Duration, useEventTime bool, onError func(error)) *WatermarkInjector {
	return &WatermarkInjector{
		emitter:      emitter,
		interval:     interval,
		useEventTime: useEventTime,
		onError:      onError,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the injector's ticker loop in a new goroutine.
func (w *WatermarkInjector) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.emitter.EmitWatermark(w.useEventTime); err != nil && w.onError != nil {
					w.onError(err)
				}
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop halts the injector's ticker.
func (w *WatermarkInjector) Stop() { w.stopOnce.Do(func() { close(w.stopCh) }) }
