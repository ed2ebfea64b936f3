// Package httpserver builds http.Server instances with timeouts sized for a
// mobile API whose slowest path is a bounded upstream provider fetch.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the project defaults. The write timeout
// leaves headroom over the provider fetch timeout so slow upstream calls
// surface as coded errors, not dropped connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
