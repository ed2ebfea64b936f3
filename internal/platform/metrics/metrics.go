// Package metrics exposes the Prometheus scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the scrape handler for the default registry, where all
// promauto-registered collectors live.
func Handler() http.Handler {
	return promhttp.Handler()
}
