// Package metrics provides the minimal counter/gauge registry used to track
// ledger activity: batches executed, batches failed, signatures validated,
// database reads and writes.
package metrics

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Enabled is checked by the constructor functions for all of the standard
// metrics. If it is true, the metric returned is a stub.
//
// This global kill-switch helps quantify the observer effect and makes
// for less cluttered profiles.
var Enabled = false

// enablerFlags is the CLI flag names to use to enable metrics collections.
var enablerFlags = []string{"metrics"}

// Init enables or disables the metrics system. Since we need this to run
// before any other code gets to create meters and timers, we'll actually do
// an ugly hack and peek into the command line args for the metrics flag.
func init() {
	for _, arg := range os.Args {
		flag := strings.TrimLeft(arg, "-")
		for _, enabler := range enablerFlags {
			if !Enabled && flag == enabler {
				Enabled = true
			}
		}
	}
}

// Counter holds an int64 value that can be incremented and decremented.
type Counter interface {
	Clear()
	Count() int64
	Dec(int64)
	Inc(int64)
	Snapshot() Counter
}

// NewCounter constructs a new Counter.
func NewCounter() Counter {
	if !Enabled {
		return NilCounter{}
	}
	return &StandardCounter{}
}

// NewRegisteredCounter constructs and registers a new Counter.
func NewRegisteredCounter(name string, r Registry) Counter {
	c := NewCounter()
	if nil == r {
		r = DefaultRegistry
	}
	r.Register(name, c)
	return c
}

// CounterSnapshot is a read-only copy of another Counter.
type CounterSnapshot int64

// Clear panics.
func (CounterSnapshot) Clear() {
	panic("Clear called on a CounterSnapshot")
}

// Count returns the count at the time the snapshot was taken.
func (c CounterSnapshot) Count() int64 { return int64(c) }

// Dec panics.
func (CounterSnapshot) Dec(int64) {
	panic("Dec called on a CounterSnapshot")
}

// Inc panics.
func (CounterSnapshot) Inc(int64) {
	panic("Inc called on a CounterSnapshot")
}

// Snapshot returns the snapshot.
func (c CounterSnapshot) Snapshot() Counter { return c }

// NilCounter is a no-op Counter.
type NilCounter struct{}

func (NilCounter) Clear()            {}
func (NilCounter) Count() int64      { return 0 }
func (NilCounter) Dec(i int64)       {}
func (NilCounter) Inc(i int64)       {}
func (NilCounter) Snapshot() Counter { return NilCounter{} }

// StandardCounter is the standard implementation of a Counter and uses the
// sync/atomic package to manage a single int64 value.
type StandardCounter struct {
	count atomic.Int64
}

// Clear sets the counter to zero.
func (c *StandardCounter) Clear() {
	c.count.Store(0)
}

// Count returns the current count.
func (c *StandardCounter) Count() int64 {
	return c.count.Load()
}

// Dec decrements the counter by the given amount.
func (c *StandardCounter) Dec(i int64) {
	c.count.Add(-i)
}

// Inc increments the counter by the given amount.
func (c *StandardCounter) Inc(i int64) {
	c.count.Add(i)
}

// Snapshot returns a read-only copy of the counter.
func (c *StandardCounter) Snapshot() Counter {
	return CounterSnapshot(c.Count())
}

// Gauge holds an int64 value that can be set arbitrarily.
type Gauge interface {
	Snapshot() Gauge
	Update(int64)
	Value() int64
}

// NewGauge constructs a new Gauge.
func NewGauge() Gauge {
	if !Enabled {
		return NilGauge{}
	}
	return &StandardGauge{}
}

// NewRegisteredGauge constructs and registers a new Gauge.
func NewRegisteredGauge(name string, r Registry) Gauge {
	g := NewGauge()
	if nil == r {
		r = DefaultRegistry
	}
	r.Register(name, g)
	return g
}

// GaugeSnapshot is a read-only copy of another Gauge.
type GaugeSnapshot int64

// Snapshot returns the snapshot.
func (g GaugeSnapshot) Snapshot() Gauge { return g }

// Update panics.
func (GaugeSnapshot) Update(int64) {
	panic("Update called on a GaugeSnapshot")
}

// Value returns the value at the time the snapshot was taken.
func (g GaugeSnapshot) Value() int64 { return int64(g) }

// NilGauge is a no-op Gauge.
type NilGauge struct{}

func (NilGauge) Snapshot() Gauge { return NilGauge{} }
func (NilGauge) Update(v int64)  {}
func (NilGauge) Value() int64    { return 0 }

// StandardGauge is the standard implementation of a Gauge and uses the
// sync/atomic package to manage a single int64 value.
type StandardGauge struct {
	value atomic.Int64
}

// Snapshot returns a read-only copy of the gauge.
func (g *StandardGauge) Snapshot() Gauge {
	return GaugeSnapshot(g.Value())
}

// Update updates the gauge's value.
func (g *StandardGauge) Update(v int64) {
	g.value.Store(v)
}

// Value returns the gauge's current value.
func (g *StandardGauge) Value() int64 {
	return g.value.Load()
}

// Registry holds references to a set of metrics by name.
type Registry interface {
	// Each calls the given function for each registered metric.
	Each(func(string, interface{}))

	// Get the metric by the given name or nil if none is registered.
	Get(string) interface{}

	// Register the given metric under the given name. Returns a
	// DuplicateMetric if a metric by the given name is already registered.
	Register(string, interface{}) error

	// Unregister the metric with the given name.
	Unregister(string)
}

// DuplicateMetric is the error returned by Registry.Register when a metric
// already exists. If you mean to Register that metric you must first
// Unregister the existing metric.
type DuplicateMetric string

func (err DuplicateMetric) Error() string {
	return "duplicate metric: " + string(err)
}

// NewRegistry constructs a new Registry.
func NewRegistry() Registry {
	return &standardRegistry{metrics: make(map[string]interface{})}
}

// standardRegistry the standard implementation of a Registry is a mutex-
// protected map of names to metrics.
type standardRegistry struct {
	metrics map[string]interface{}
	mutex   sync.RWMutex
}

func (r *standardRegistry) Each(f func(string, interface{})) {
	for name, m := range r.registered() {
		f(name, m)
	}
}

func (r *standardRegistry) Get(name string) interface{} {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.metrics[name]
}

func (r *standardRegistry) Register(name string, m interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.metrics[name]; ok {
		return DuplicateMetric(name)
	}
	r.metrics[name] = m
	return nil
}

func (r *standardRegistry) Unregister(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.metrics, name)
}

func (r *standardRegistry) registered() map[string]interface{} {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	metrics := make(map[string]interface{}, len(r.metrics))
	for name, m := range r.metrics {
		metrics[name] = m
	}
	return metrics
}

// DefaultRegistry is the registry all package-level constructors register
// into.
var DefaultRegistry = NewRegistry()
