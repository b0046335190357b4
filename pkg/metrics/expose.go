package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler that exposes the registered Prometheus
// metrics. The crawler is a batch job, not a long-running service, so
// callers only mount this when Config.Metrics.Enabled is set.
func Handler() http.Handler {
	return promhttp.Handler()
}
