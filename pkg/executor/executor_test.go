package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/executor"
)

// countingStepper completes after n Step calls.
type countingStepper struct {
	mu    sync.Mutex
	steps int
	n     int
	done  chan struct{}
}

func (c *countingStepper) Step(context.Context) (executor.Status, error) {
	c.mu.Lock()
	c.steps++
	finished := c.steps >= c.n
	c.mu.Unlock()
	if finished {
		close(c.done)
		return executor.Done, nil
	}
	return executor.Pending, nil
}

func TestTaskRunsToCompletionAcrossWakes(t *testing.T) {
	e := executor.New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); _ = e.Run(ctx) }()

	stepper := &countingStepper{n: 3, done: make(chan struct{})}
	task := executor.NewTask(1, stepper)
	e.Submit(task)

	// Each wake re-enqueues the task for another Step.
	task.Wake()
	task.Wake()

	select {
	case <-stepper.done:
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}

	stepper.mu.Lock()
	defer stepper.mu.Unlock()
	require.Equal(t, 3, stepper.steps)
}

type erroringStepper struct{}

func (erroringStepper) Step(context.Context) (executor.Status, error) {
	return executor.Pending, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestTaskErrorDoesNotCrashExecutor(t *testing.T) {
	e := executor.New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = e.Run(ctx) }()

	e.Submit(executor.NewTask(1, erroringStepper{}))

	ok := &countingStepper{n: 1, done: make(chan struct{})}
	e.Submit(executor.NewTask(2, ok))
	select {
	case <-ok.done:
	case <-time.After(time.Second):
		t.Fatal("executor stopped processing after a failing task")
	}
}
