package engine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Exporter serves the harness's own live counters over a Prometheus
// /metrics endpoint, so long runs and sweeps can be watched from the
// outside. It tracks whichever Metrics instance belongs to the run in
// flight; between runs it reports the last one.
type Exporter struct {
	current atomic.Pointer[Metrics]
	server  *http.Server
	log     *zap.Logger
}

var (
	descConnOK = prometheus.NewDesc("chatload_connections_ok_total",
		"Connections opened successfully in the current run.", nil, nil)
	descConnFailed = prometheus.NewDesc("chatload_connections_failed_total",
		"Connection attempts refused or timed out in the current run.", nil, nil)
	descBytesSent = prometheus.NewDesc("chatload_bytes_sent_total",
		"Bytes written to the target in the current run.", nil, nil)
	descBytesRecv = prometheus.NewDesc("chatload_bytes_recv_total",
		"Bytes read from the target in the current run.", nil, nil)
	descRequests = prometheus.NewDesc("chatload_requests_sent_total",
		"Probe commands sent in the current run.", nil, nil)
	descResponses = prometheus.NewDesc("chatload_responses_observed_total",
		"Probe responses observed in the current run.", nil, nil)
	descTTFB = prometheus.NewDesc("chatload_ttfb_seconds",
		"TTFB percentile estimate over the current run's reservoir.",
		[]string{"quantile"}, nil)
)

func NewExporter(listen string, log *zap.Logger) *Exporter {
	e := &Exporter{log: log}

	registry := prometheus.NewRegistry()
	registry.MustRegister(e)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	return e
}

// Track switches the exporter to a new run's metrics.
func (e *Exporter) Track(m *Metrics) {
	e.current.Store(m)
}

// Start begins serving in the background.
func (e *Exporter) Start() {
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Warn("metrics endpoint failed", zap.Error(err))
		}
	}()
}

func (e *Exporter) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = e.server.Shutdown(ctx)
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnOK
	ch <- descConnFailed
	ch <- descBytesSent
	ch <- descBytesRecv
	ch <- descRequests
	ch <- descResponses
	ch <- descTTFB
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	m := e.current.Load()
	if m == nil {
		return
	}

	c := m.Counters()
	ch <- prometheus.MustNewConstMetric(descConnOK, prometheus.CounterValue, float64(c.ConnectionsOK))
	ch <- prometheus.MustNewConstMetric(descConnFailed, prometheus.CounterValue, float64(c.ConnectionsFailed))
	ch <- prometheus.MustNewConstMetric(descBytesSent, prometheus.CounterValue, float64(c.BytesSent))
	ch <- prometheus.MustNewConstMetric(descBytesRecv, prometheus.CounterValue, float64(c.BytesRecv))
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(c.RequestsSent))
	ch <- prometheus.MustNewConstMetric(descResponses, prometheus.CounterValue, float64(c.ResponsesObserved))

	for q, v := range m.LivePercentiles(50, 90, 95, 99) {
		if v == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(descTTFB, prometheus.GaugeValue, *v,
			quantileLabel(q))
	}
}

func quantileLabel(p int) string {
	switch p {
	case 50:
		return "0.5"
	case 90:
		return "0.9"
	case 95:
		return "0.95"
	case 99:
		return "0.99"
	default:
		return "0"
	}
}
