package wasi

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects runner statistics. A nil *Metrics records nothing.
type Metrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	hostCalls *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wasmlib",
			Name:      "entrypoint_calls_total",
			Help:      "Entry point invocations by contract, function and outcome.",
		}, []string{"contract", "function", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wasmlib",
			Name:      "entrypoint_duration_seconds",
			Help:      "Entry point execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"contract"}),
		hostCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wasmlib",
			Name:      "host_calls_total",
			Help:      "Host ABI function invocations.",
		}, []string{"function"}),
	}

	var err error
	if m.calls, err = register(reg, m.calls); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.hostCalls, err = register(reg, m.hostCalls); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeCall(contract, function string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(contract, function, outcome).Inc()
	m.duration.WithLabelValues(contract).Observe(time.Since(start).Seconds())
}

func (m *Metrics) hostCall(function string) {
	if m == nil {
		return
	}
	m.hostCalls.WithLabelValues(function).Inc()
}
