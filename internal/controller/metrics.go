package controller

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the controller's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	faults          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "requests_total",
			Help:      "Dispatched requests by handler and response status.",
		}, []string{"handler", "status"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "faults_total",
			Help:      "Registered faults translated into error pages.",
		}, []string{"fault"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "refresh_total",
			Help:      "Resync passes by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "appshell",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of resync passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.faults, m.refreshes, m.refreshDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(handler string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(handler, label).Inc()
}

func (m *Metrics) fault(id string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(id).Inc()
}

func (m *Metrics) refresh(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(d.Seconds())
}
