// Package httpserver builds the process-wide http.Server. Per-route timeouts
// live in the middleware chain; the server only bounds the parts a handler
// never sees.
package httpserver

import (
	"net/http"
	"time"
)

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
