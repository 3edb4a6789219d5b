// Package metrics holds the Prometheus collectors for registration and
// file copy throughput. Collectors are always updated; they are exposed only
// when Init has registered them.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GroupRegistrations counts file group outcomes by status.
	GroupRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocat_group_registrations_total",
			Help: "File groups processed, by outcome",
		},
		[]string{"outcome"},
	)

	RegistrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photocat_group_registration_seconds",
			Help:    "Time spent registering one file group",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	FileCopyFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photocat_file_copy_files_total",
			Help: "Files handled by copy operations, by result",
		},
		[]string{"result"},
	)

	RegistrationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photocat_registration_queue_depth",
			Help: "Registration jobs waiting for a worker",
		},
	)

	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// Init registers the collectors together with the Go runtime and process
// collectors. Later calls are no-ops.
func Init() {
	initOnce.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			GroupRegistrations,
			RegistrationDuration,
			FileCopyFiles,
			RegistrationQueueDepth,
		)
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func Registry() *prometheus.Registry {
	return registry
}
