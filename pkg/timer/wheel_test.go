package timer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/timer"
)

func TestAdvanceToFiresInDeadlineOrder(t *testing.T) {
	w := timer.New()
	w.ScheduleAt(30, "c")
	w.ScheduleAt(10, "a")
	w.ScheduleAt(20, "b")

	actions := w.AdvanceTo(25)
	require.Len(t, actions, 2)
	require.Equal(t, "a", actions[0].Cont)
	require.Equal(t, "b", actions[1].Cont)
	require.Equal(t, 1, w.Len())
}

func TestAdvanceToTiesByInsertionOrder(t *testing.T) {
	w := timer.New()
	w.ScheduleAt(10, "first")
	w.ScheduleAt(10, "second")
	w.ScheduleAt(10, "third")

	actions := w.AdvanceTo(10)
	require.Equal(t, []any{"first", "second", "third"}, []any{actions[0].Cont, actions[1].Cont, actions[2].Cont})
}

func TestCancelRemovesEntry(t *testing.T) {
	w := timer.New()
	id := w.ScheduleAt(10, "a")
	w.Cancel(id)

	require.Empty(t, w.AdvanceTo(100))
}

func TestGetSetTime(t *testing.T) {
	w := timer.New()
	require.Equal(t, uint64(0), w.GetTime())
	w.SetTime(42)
	require.Equal(t, uint64(42), w.GetTime())
}
