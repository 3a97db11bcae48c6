package syncplus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives lock wait diagnostics alongside the log output.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	// WaitWarning is called each time a wait crosses a warning threshold.
	WaitWarning(lock string, kind LockType)
	// SlowAcquire is called once a wait that produced at least one warning
	// finally acquires the lock.
	SlowAcquire(lock string, kind LockType, waited time.Duration)
}

// PrometheusObserver exports wait diagnostics as Prometheus metrics.
type PrometheusObserver struct {
	warnings *prometheus.CounterVec
	slow     *prometheus.HistogramVec
}

// NewPrometheusObserver creates the collectors and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncplus",
			Subsystem: "lock",
			Name:      "wait_warnings_total",
			Help:      "Lock waits that crossed a warning threshold",
		}, []string{"lock", "type"}),
		slow: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncplus",
			Subsystem: "lock",
			Name:      "slow_acquire_seconds",
			Help:      "Wait time of acquisitions that produced a warning",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"lock", "type"}),
	}
	if err := reg.Register(o.warnings); err != nil {
		return nil, err
	}
	if err := reg.Register(o.slow); err != nil {
		reg.Unregister(o.warnings)
		return nil, err
	}
	return o, nil
}

// WaitWarning implements Observer.
func (o *PrometheusObserver) WaitWarning(lock string, kind LockType) {
	o.warnings.WithLabelValues(lock, kind.String()).Inc()
}

// SlowAcquire implements Observer.
func (o *PrometheusObserver) SlowAcquire(lock string, kind LockType, waited time.Duration) {
	o.slow.WithLabelValues(lock, kind.String()).Observe(waited.Seconds())
}
