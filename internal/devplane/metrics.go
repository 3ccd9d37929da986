package devplane

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgepub",
			Subsystem: "devplane",
			Name:      "requests_total",
			Help:      "Total control plane API requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgepub",
			Subsystem: "devplane",
			Name:      "request_duration_seconds",
			Help:      "Control plane API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	namespaceMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgepub",
			Subsystem: "devplane",
			Name:      "namespace_mutations_total",
			Help:      "Durable object namespace creates and updates by kind.",
		},
		[]string{"kind"},
	)
)

const (
	mutationPlaceholder = "placeholder"
	mutationCreate      = "create"
	mutationUpdate      = "update"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, namespaceMutations)
	})
}

func recordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func recordNamespaceMutation(kind string) {
	RegisterMetrics()
	namespaceMutations.WithLabelValues(kind).Inc()
}
