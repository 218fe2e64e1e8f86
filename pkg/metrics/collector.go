package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/manager"
)

// Collector republishes a NodeManager's latest per-node metrics
// snapshots as Prometheus gauges/counters on a fixed interval.
type Collector struct {
	mgr     *manager.NodeManager
	nodeIDs []event.NodeID
	stage   string
	stopCh  chan struct{}

	// prev holds the last cumulative value seen per node/key, so
	// counters are advanced by the delta since the last tick rather
	// than re-adding the node's running total every tick.
	prev map[event.NodeID]map[string]float64
}

// NewCollector builds a Collector over mgr, polling the given node ids
// each tick. stage labels the NodeParallelism gauge.
func NewCollector(mgr *manager.NodeManager, stage string, nodeIDs []event.NodeID) *Collector {
	return &Collector{
		mgr:     mgr,
		stage:   stage,
		nodeIDs: nodeIDs,
		stopCh:  make(chan struct{}),
		prev:    make(map[event.NodeID]map[string]float64, len(nodeIDs)),
	}
}

// Start begins the collector's ticker loop, polling every interval.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector's ticker loop.
func (c *Collector) Stop() { close(c.stopCh) }

func (c *Collector) collect() {
	current, _ := c.mgr.NodeParallelism()
	NodeParallelism.WithLabelValues(c.stage).Set(float64(current))

	for _, id := range c.nodeIDs {
		snapshot, ok := c.mgr.Metrics(id)
		if !ok {
			continue
		}
		label := id.String()
		last := c.prev[id]
		if last == nil {
			last = make(map[string]float64, len(snapshot))
			c.prev[id] = last
		}

		c.addDelta(ElementsAdmitted.WithLabelValues(label), last, snapshot, "elements_admitted")
		c.addDelta(ElementsDiscardedLate.WithLabelValues(label), last, snapshot, "elements_discarded_late")
		c.addDelta(WindowsFired.WithLabelValues(label), last, snapshot, "windows_fired")
		c.addDelta(ModuleRunErrors.WithLabelValues(label), last, snapshot, "module_run_errors")

		if v, ok := snapshot["watermark_lag_seconds"]; ok {
			WatermarkLagSeconds.WithLabelValues(label).Set(v)
		}
	}
}

// addDelta advances counter by the increase in snapshot[key] since the
// last tick recorded in last, since a node reports its running total
// on every Metrics event rather than a per-report increment.
func (c *Collector) addDelta(counter prometheus.Counter, last, snapshot map[string]float64, key string) {
	v, ok := snapshot[key]
	if !ok {
		return
	}
	delta := v - last[key]
	if delta > 0 {
		counter.Add(delta)
	}
	last[key] = v
}
