// Package metrics exports probe outcomes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/healthwatch/internal/scheduler"
)

// Metrics holds the collectors fed by the scheduler.
type Metrics struct {
	registry      *prometheus.Registry
	targetUp      *prometheus.GaugeVec
	failures      *prometheus.GaugeVec
	probeDuration *prometheus.HistogramVec
	rounds        prometheus.Counter
	roundDuration prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		targetUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthwatch_target_up",
			Help: "1 if the last probe of the target succeeded, 0 otherwise.",
		}, []string{"target"}),
		failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthwatch_target_consecutive_failures",
			Help: "Number of consecutive failed probes of the target.",
		}, []string{"target"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthwatch_probe_duration_seconds",
			Help:    "Time to a complete response, for probes that got one.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target", "result"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthwatch_rounds_total",
			Help: "Number of completed probe rounds.",
		}),
		roundDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthwatch_round_duration_seconds",
			Help: "Wall-clock duration of the last completed round.",
		}),
	}
	m.registry.MustRegister(m.targetUp, m.failures, m.probeDuration, m.rounds, m.roundDuration)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResult is a scheduler result callback.
func (m *Metrics) ObserveResult(ev scheduler.Event) {
	name := ev.Target.Name
	up := 0.0
	if ev.Current.IsUp() {
		up = 1
	}
	m.targetUp.WithLabelValues(name).Set(up)
	m.failures.WithLabelValues(name).Set(float64(ev.Current.ConsecutiveFailures))

	if ev.Result.Responded {
		m.probeDuration.WithLabelValues(name, string(ev.Result.Status())).Observe(ev.Result.Latency.Seconds())
	}
}

// ObserveRound is a scheduler round callback.
func (m *Metrics) ObserveRound(rs scheduler.RoundSummary) {
	m.rounds.Inc()
	m.roundDuration.Set(rs.Duration().Seconds())
}
