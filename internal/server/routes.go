// Package server wires HTTP handlers into a gorilla/mux router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes returns a router serving the WebSocket endpoint and the health
// check. The root path answers like /health.
func SetupRoutes(ws http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/ws", ws)
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	return r
}
