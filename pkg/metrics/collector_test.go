package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/control"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/manager"
	"github.com/cuemby/arcflow/pkg/metrics"
)

type fakeNode struct{ id event.NodeID }

func (f *fakeNode) ID() event.NodeID { return f.id }
func (f *fakeNode) Stop()            {}

func TestCollectorRepublishesNodeMetricsAsPrometheusVectors(t *testing.T) {
	m := manager.New(manager.Config{NodeParallelism: 1}, zerolog.Nop())
	n := &fakeNode{id: 7}
	m.Register(n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Inbox().Send(control.NodeEvent{
		NodeID: 7,
		Kind:   control.Metrics,
		MetricValues: map[string]float64{
			"elements_admitted": 5,
			"windows_fired":     2,
		},
	})

	require.Eventually(t, func() bool {
		got, ok := m.Metrics(7)
		return ok && got["elements_admitted"] == 5
	}, time.Second, 5*time.Millisecond)

	c := metrics.NewCollector(m, "stage-0", []event.NodeID{7})
	c.Start(10 * time.Millisecond)
	defer c.Stop()

	label := event.NodeID(7).String()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.ElementsAdmitted.WithLabelValues(label)) >= 5
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.WindowsFired.WithLabelValues(label)) >= 2
	}, time.Second, 5*time.Millisecond)
}
