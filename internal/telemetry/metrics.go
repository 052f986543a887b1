// Package telemetry holds the process-wide Prometheus collectors served on
// the metrics port.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	WeightUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyball_weight_updates_total",
		Help: "Weight changes requested, by outcome.",
	}, []string{"result"})

	ScoreUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyball_score_updates_total",
		Help: "Score edits requested, by outcome.",
	}, []string{"result"})

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyball_persist_failures_total",
		Help: "Best-effort writes to the catalog backend that failed.",
	}, []string{"op"})

	CatalogLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyball_catalog_loads_total",
		Help: "Catalog loads, by the source that ended up serving them.",
	}, []string{"source"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneyball_http_requests_total",
		Help: "API requests handled, by method and status code.",
	}, []string{"method", "status"})
)

// ObserveRequest counts one finished API request.
func ObserveRequest(method string, status int) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Result maps an error to the result label.
func Result(err error, rejected bool) string {
	switch {
	case err == nil:
		return ResultOK
	case rejected:
		return ResultRejected
	default:
		return ResultFailed
	}
}
