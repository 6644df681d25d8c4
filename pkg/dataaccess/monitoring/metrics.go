package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreLatency is the duration of store queries.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dataaccess_store_latency",
			Help: "Duration of store queries",
		},
		[]string{"driver", "query", "database", "collection"},
	)

	// StoreTotalRequests is the total number of store requests.
	StoreTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataaccess_store_total_requests",
			Help: "Total number of store requests",
		},
		[]string{"driver", "query", "database", "collection"},
	)
)

// Observe counts a request and returns a function that records its latency.
func Observe(driver, query, database, collection string) func() {
	StoreTotalRequests.WithLabelValues(driver, query, database, collection).Inc()
	t := prometheus.NewTimer(StoreLatency.WithLabelValues(driver, query, database, collection))
	return func() {
		t.ObserveDuration()
	}
}
