// Package metrics exports plan execution measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/planmesh/engine"
)

const namespace = "planmesh"

// Observer implements engine.Observer with Prometheus collectors.
type Observer struct {
	gatherer prometheus.Gatherer

	activities *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	plans      *prometheus.CounterVec
	planTime   *prometheus.HistogramVec
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg. A nil reg
// uses a fresh registry.
func NewObserver(reg *prometheus.Registry) (*Observer, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	o := &Observer{
		gatherer: reg,
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_total",
			Help:      "Executed activities by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_duration_seconds",
			Help:      "Activity execution time by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Finished plan runs by terminal state.",
		}, []string{"state"}),
		planTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Plan run time by terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{o.activities, o.duration, o.plans, o.planTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// ObserveActivity implements engine.Observer.
func (o *Observer) ObserveActivity(activityType string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	o.activities.WithLabelValues(activityType, outcome).Inc()
	o.duration.WithLabelValues(activityType).Observe(d.Seconds())
}

// ObservePlan implements engine.Observer.
func (o *Observer) ObservePlan(state string, d time.Duration) {
	o.plans.WithLabelValues(state).Inc()
	o.planTime.WithLabelValues(state).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}
