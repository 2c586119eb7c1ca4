// Package metrics holds the Prometheus collectors for the state-versioning
// core. Every method is safe on a nil *Metrics so components can take an
// optional instance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workshop"

// Metrics groups the collectors. Build it with New.
type Metrics struct {
	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	loads        *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	historyLen   prometheus.Gauge
	undoOps      *prometheus.CounterVec
	checkpoints  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg registers
// them on a fresh private registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "saves_total",
			Help:      "Snapshot saves by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "save_duration_seconds",
			Help:      "Time spent encoding and writing a snapshot and the index.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "loads_total",
			Help:      "Snapshot loads by result (found, empty).",
		}, []string{"result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "evictions_total",
			Help:      "History entries evicted during load, by error category.",
		}, []string{"category"}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "history_length",
			Help:      "Number of snapshot ids currently in the history.",
		}),
		undoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "undo",
			Name:      "operations_total",
			Help:      "Stock commits, undos and redos by result.",
		}, []string{"op", "result"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "checkpoints_total",
			Help:      "Engine checkpoints by trigger (manual, interval, shutdown).",
		}, []string{"trigger"}),
	}
	for _, c := range []prometheus.Collector{m.saves, m.saveDuration, m.loads, m.evictions, m.historyLen, m.undoOps, m.checkpoints} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// ObserveSave records one save attempt.
func (m *Metrics) ObserveSave(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result(ok)).Inc()
	if ok {
		m.saveDuration.Observe(d.Seconds())
	}
}

// ObserveLoad records a load outcome.
func (m *Metrics) ObserveLoad(found bool) {
	if m == nil {
		return
	}
	if found {
		m.loads.WithLabelValues("found").Inc()
		return
	}
	m.loads.WithLabelValues("empty").Inc()
}

// Evicted counts one history entry dropped during load.
func (m *Metrics) Evicted(category string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(category).Inc()
}

// SetHistoryLen publishes the current history length.
func (m *Metrics) SetHistoryLen(n int) {
	if m == nil {
		return
	}
	m.historyLen.Set(float64(n))
}

// UndoOp counts a stock commit, undo or redo.
func (m *Metrics) UndoOp(op string, ok bool) {
	if m == nil {
		return
	}
	m.undoOps.WithLabelValues(op, result(ok)).Inc()
}

// Checkpoint counts an engine save by trigger.
func (m *Metrics) Checkpoint(trigger string) {
	if m == nil {
		return
	}
	m.checkpoints.WithLabelValues(trigger).Inc()
}
