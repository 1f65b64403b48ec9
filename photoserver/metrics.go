package photoserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gallery counters on a private registry so several
// servers (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry
	uploads  *prometheus.CounterVec
	deletes  *prometheus.CounterVec
	orphans  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_uploads_total",
			Help: "Photo uploads by result.",
		}, []string{"result"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_deletes_total",
			Help: "Photo deletions by result.",
		}, []string{"result"}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_orphans_total",
			Help: "Blobs left without a record, by pipeline stage.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads, m.deletes, m.orphans,
	)
	return m
}

// Handler serves the registry for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrphanObserved matches gallery.WithOrphanHook.
func (m *Metrics) OrphanObserved(stage string) {
	m.orphans.WithLabelValues(stage).Inc()
}

func (m *Metrics) upload(ok bool) {
	m.uploads.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) delete(ok bool) {
	m.deletes.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
