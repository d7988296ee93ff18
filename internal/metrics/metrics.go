// Package metrics exports undo manager activity as Prometheus metrics.
//
// Collectors are registered on a caller-supplied registry so tests and
// embedding programs never touch the global default registry.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/ydoc/internal/engine/history"
)

// Metrics holds the undo manager collectors.
type Metrics struct {
	added  *prometheus.CounterVec
	merged *prometheus.CounterVec
	popped *prometheus.CounterVec
	depth  *depthCollector
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		added: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "stack_items_added_total",
			Help:      "Stack items pushed by captured transactions.",
		}, []string{"manager", "stack"}),
		merged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "captures_merged_total",
			Help:      "Captured transactions merged into the top stack item.",
		}, []string{"manager", "stack"}),
		popped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "stack_items_popped_total",
			Help:      "Stack items inverted by undo or redo.",
		}, []string{"manager", "direction"}),
		depth: newDepthCollector(namespace),
	}
	reg.MustRegister(m.depth)
	return m
}

// Attach starts counting the events of um under the given manager label.
// Stack depths are read from um at scrape time, so scrapes must not run
// concurrently with document edits. The returned function detaches um.
func (m *Metrics) Attach(name string, um *history.UndoManager) (detach func()) {
	cancelAdded := um.OnStackItemAdded(func(ev history.StackItemEvent) {
		if ev.Merged {
			m.merged.WithLabelValues(name, string(ev.Direction)).Inc()
			return
		}
		m.added.WithLabelValues(name, string(ev.Direction)).Inc()
	})
	cancelPopped := um.OnStackItemPopped(func(ev history.StackItemEvent) {
		m.popped.WithLabelValues(name, string(ev.Direction)).Inc()
	})
	m.depth.add(name, um)

	return func() {
		cancelAdded()
		cancelPopped()
		m.depth.remove(name)
	}
}

// depthCollector reports the stack depths of attached managers.
type depthCollector struct {
	desc *prometheus.Desc

	mu       sync.Mutex
	managers map[string]*history.UndoManager
}

func newDepthCollector(namespace string) *depthCollector {
	return &depthCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "history", "stack_depth"),
			"Number of items on an undo manager stack.",
			[]string{"manager", "stack"}, nil,
		),
		managers: make(map[string]*history.UndoManager),
	}
}

func (c *depthCollector) add(name string, um *history.UndoManager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.managers[name] = um
}

func (c *depthCollector) remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.managers, name)
}

// Describe implements prometheus.Collector.
func (c *depthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *depthCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.managers))
	for name := range c.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		um := c.managers[name]
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(um.UndoLen()), name, string(history.DirectionUndo))
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(um.RedoLen()), name, string(history.DirectionRedo))
	}
}
