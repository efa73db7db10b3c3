package persist

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for one Scheduler.
type Metrics struct {
	writes      prometheus.Counter   // Successful file replacements
	writeErrors prometheus.Counter   // Failed attempts, retries included
	abandoned   prometheus.Counter   // Rounds given up after the retry
	bytes       prometheus.Counter   // Bytes written by successful attempts
	duration    prometheus.Histogram // Duration of each attempt
	state       prometheus.Gauge     // Current State of the loop
}

// NewMetrics creates the metrics for the store file path and registers them
// with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, path string) (*Metrics, error) {
	labels := prometheus.Labels{"file": path}
	m := &Metrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "writes_total",
			Help:        "Total number of successful file writes",
			ConstLabels: labels,
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "write_errors_total",
			Help:        "Total number of failed write attempts",
			ConstLabels: labels,
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "abandoned_rounds_total",
			Help:        "Total number of write rounds abandoned after retrying",
			ConstLabels: labels,
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "written_bytes_total",
			Help:        "Total number of bytes written",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "write_duration_seconds",
			Help:        "Duration of write attempts",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
			ConstLabels: labels,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "jsonkv",
			Subsystem:   "persist",
			Name:        "state",
			Help:        "Scheduler state (0=idle, 1=debouncing, 2=writing, 3=disposed)",
			ConstLabels: labels,
		}),
	}
	if reg == nil {
		return m, nil
	}
	var errs []error
	for _, c := range []prometheus.Collector{m.writes, m.writeErrors, m.abandoned, m.bytes, m.duration, m.state} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *Metrics) attempt(seconds float64, size int, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
	if err != nil {
		m.writeErrors.Inc()
		return
	}
	m.writes.Inc()
	m.bytes.Add(float64(size))
}

func (m *Metrics) abandon() {
	if m != nil {
		m.abandoned.Inc()
	}
}
