package telemetry

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "missioncontrol"

// Registry exposes Metrics and request latencies to Prometheus.
type Registry struct {
	reg             *prometheus.Registry
	RequestDuration *prometheus.HistogramVec
}

func NewRegistry(m *Metrics) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	keys := make([]string, 0, 32)
	for key := range m.Snapshot() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		key := key
		opts := prometheus.GaugeOpts{Namespace: namespace, Name: key, Help: strings.ReplaceAll(key, "_", " ")}
		value := func() float64 { return float64(m.Snapshot()[key]) }
		if strings.HasSuffix(key, "_total") {
			reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts(opts), value))
			continue
		}
		reg.MustRegister(prometheus.NewGaugeFunc(opts, value))
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status class.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 10, 30, 90},
	}, []string{"route", "status"})
	reg.MustRegister(duration)

	return &Registry{reg: reg, RequestDuration: duration}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
