/*
Package executor implements the cooperative task poller of spec
section 4.7: a minimal executor for future-shaped background work
(e.g. state-backend flushes), not used on the hot data path, which
runs on the node actor loop directly.

The original smuggles a wake-up handle through an ArcWake
implementation backed by an UnsafeCell executor reference. This
rewrite keeps the same reinstall-then-wake shape but the wake handle
is an explicit channel field set once at submission — no unsafe cell,
no raw pointer.
*/
package executor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Status is a task's outcome after one Step.
type Status int

const (
	Pending Status = iota
	Done
)

// Stepper is a suspended computation polled to completion across
// possibly many Step calls.
type Stepper interface {
	Step(ctx context.Context) (Status, error)
}

// Task wraps a Stepper with the wake-up handle an Executor gives it on
// first submission.
type Task struct {
	id      uint64
	stepper Stepper
	wake    chan<- *Task
}

// NewTask wraps stepper as a schedulable unit of work.
func NewTask(id uint64, stepper Stepper) *Task {
	return &Task{id: id, stepper: stepper}
}

// ID returns the task's identifier, used only for logging.
func (t *Task) ID() uint64 { return t.id }

// Wake re-enqueues the task onto the executor it was last submitted
// to. It is a no-op (the task is effectively cancelled) if the task
// was never submitted, or if the executor's mailbox is currently full
// — mirroring the original's "Else cancel?" comment on an unset waker.
func (t *Task) Wake() {
	if t.wake == nil {
		return
	}
	select {
	case t.wake <- t:
	default:
	}
}

// Executor is a single-goroutine poller: a task is processed to
// completion of one Step call before the next task is dequeued.
type Executor struct {
	mailbox  chan *Task
	logger   zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// New returns an Executor with a buffered mailbox.
func New(logger zerolog.Logger) *Executor {
	return &Executor{mailbox: make(chan *Task, 256), logger: logger, stop: make(chan struct{})}
}

// Submit enqueues t for its first Step and binds t's wake handle to
// this executor's mailbox, so a later t.Wake() re-enqueues it here.
func (e *Executor) Submit(t *Task) {
	t.wake = e.mailbox
	select {
	case e.mailbox <- t:
	case <-e.stop:
	}
}

// Stop halts the executor's Run loop after its current task.
func (e *Executor) Stop() { e.stopOnce.Do(func() { close(e.stop) }) }

// Run drains the mailbox until ctx is cancelled or Stop is called.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case t := <-e.mailbox:
			e.step(ctx, t)
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		}
	}
}

// step polls t once. A Pending result reinstalls nothing explicitly —
// the task keeps its wake handle from Submit and waits to be woken;
// Done drops the task, and an error is logged and the task dropped.
func (e *Executor) step(ctx context.Context, t *Task) {
	status, err := t.stepper.Step(ctx)
	if err != nil {
		e.logger.Error().Err(err).Uint64("task_id", t.id).Msg("task step failed")
		return
	}
	if status == Done {
		return
	}
}
