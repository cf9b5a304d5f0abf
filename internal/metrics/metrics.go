package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loykin/krishid/internal/status"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krishid",
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Availability checks by resulting endpoint status.",
		}, []string{"result"},
	)
	probeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "krishid",
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "Latency of availability checks, including failed ones.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	startAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krishid",
			Subsystem: "start",
			Name:      "attempts_total",
			Help:      "Start strategy invocations by strategy id and result.",
		}, []string{"strategy", "result"},
	)
	readyWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "krishid",
			Subsystem: "start",
			Name:      "ready_wait_seconds",
			Help:      "Time spent waiting for the endpoint to become ready after a start.",
			Buckets:   []float64{1, 2, 4, 8, 16, 30, 60},
		},
	)
	endpointStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "krishid",
			Subsystem: "endpoint",
			Name:      "status",
			Help:      "Current endpoint status (1 = active status, 0 = inactive).",
		}, []string{"status"},
	)
	guidanceShown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "krishid",
			Subsystem: "guidance",
			Name:      "rendered_total",
			Help:      "Guidance and notification messages rendered, by kind.",
		}, []string{"kind"},
	)
	serviceCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "krishid",
			Subsystem: "service",
			Name:      "cpu_percent",
			Help:      "CPU usage of the launched backend process.",
		},
	)
	serviceRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "krishid",
			Subsystem: "service",
			Name:      "memory_rss_bytes",
			Help:      "Resident memory of the launched backend process.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probeChecks, probeLatency, startAttempts, readyWait, endpointStatus, guidanceShown, serviceCPU, serviceRSS}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveCheck(st status.EndpointStatus, seconds float64) {
	if regOK.Load() {
		probeChecks.WithLabelValues(st.String()).Inc()
		probeLatency.Observe(seconds)
	}
}

func IncStartAttempt(strategy string, ok bool) {
	if regOK.Load() {
		result := "failure"
		if ok {
			result = "success"
		}
		startAttempts.WithLabelValues(strategy, result).Inc()
	}
}

func ObserveReadyWait(seconds float64) {
	if regOK.Load() {
		readyWait.Observe(seconds)
	}
}

func SetEndpointStatus(cur status.EndpointStatus) {
	if regOK.Load() {
		for _, s := range status.All() {
			v := 0.0
			if s == cur {
				v = 1
			}
			endpointStatus.WithLabelValues(s.String()).Set(v)
		}
	}
}

func IncGuidance(kind string) {
	if regOK.Load() {
		guidanceShown.WithLabelValues(kind).Inc()
	}
}

func SetServiceUsage(cpuPercent float64, rssBytes uint64) {
	if regOK.Load() {
		serviceCPU.Set(cpuPercent)
		serviceRSS.Set(float64(rssBytes))
	}
}
