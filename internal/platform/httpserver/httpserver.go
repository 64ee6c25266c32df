package httpserver

import (
	"net/http"
	"time"
)

// New builds the portal's HTTP server. Only ReadHeaderTimeout is bounded;
// the watch endpoint streams indefinitely, so no write or idle timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
