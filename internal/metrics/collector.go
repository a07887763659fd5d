package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blobferry/internal/events"
)

// Collector exposes transfer metrics. It implements events.Emitter and
// events.InflightTracker so it can be fanned in next to the log emitter and
// the stats tracker.
type Collector struct {
	registry     *prometheus.Registry
	objectsTotal *prometheus.CounterVec
	bytesTotal   prometheus.Counter
	chunksTotal  *prometheus.CounterVec
	duration     prometheus.Histogram
	inflight     prometheus.Gauge
}

// New creates a collector with its own registry, so repeated construction
// (one per process is typical, one per test is common) never collides.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		objectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobferry_objects_total",
				Help: "Total number of objects transferred",
			},
			[]string{"op", "status"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "blobferry_bytes_total",
				Help: "Total bytes transferred successfully",
			},
		),
		chunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blobferry_chunks_total",
				Help: "Total number of large-object chunks uploaded",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blobferry_transfer_duration_seconds",
				Help:    "Time taken to transfer an object",
				Buckets: prometheus.DefBuckets,
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blobferry_inflight_transfers",
				Help: "Number of transfer operations currently running",
			},
		),
	}

	c.registry.MustRegister(c.objectsTotal, c.bytesTotal, c.chunksTotal, c.duration, c.inflight)

	return c
}

// Emit records one finished transfer operation.
func (c *Collector) Emit(e events.Event) {
	status := "success"
	if e.Err != nil {
		status = "failed"
	}

	if e.Op == events.OpChunk {
		c.chunksTotal.WithLabelValues(status).Inc()
		return
	}

	c.objectsTotal.WithLabelValues(string(e.Op), status).Inc()
	c.duration.Observe(e.Duration.Seconds())
	if e.Err == nil {
		c.bytesTotal.Add(float64(e.Size))
	}
}

// TaskStarted marks one transfer operation as running.
func (c *Collector) TaskStarted(events.Op) {
	c.inflight.Inc()
}

// TaskFinished marks one transfer operation as done.
func (c *Collector) TaskFinished(events.Op) {
	c.inflight.Dec()
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr. It blocks, so callers run it in a
// goroutine.
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(addr, mux)
}
