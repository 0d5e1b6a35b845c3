// Package httpapi is the adapter frontend and maintenance API: a
// gorilla/mux router over the Structure Service façade, DTO mapping, and
// middleware for panic recovery, request logging, and CORS.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/pkg/config"
)

// NewRouter builds the full HTTP handler: every route under
// cfg.RoutePrefix, wrapped with logging, CORS, and panic recovery.
func NewRouter(cfg *config.Config, svc *service.Service) http.Handler {
	a := &api{cfg: cfg, svc: svc}

	r := mux.NewRouter()
	sub := r.PathPrefix(cfg.RoutePrefix).Subrouter()

	sub.HandleFunc("/info", a.handleInfo).Methods(http.MethodGet, http.MethodOptions)

	sub.Handle("/structure", requireAuth(cfg, http.HandlerFunc(a.handleGetStructure))).Methods(http.MethodGet, http.MethodOptions)

	sub.Handle("/thingNodes/{id}", requireAuth(cfg, http.HandlerFunc(a.handleGetThingNode))).Methods(http.MethodGet, http.MethodOptions)
	sub.Handle("/thingNodes/{id}/metadata/", requireAuth(cfg, http.HandlerFunc(a.handleMetadata))).Methods(http.MethodGet, http.MethodOptions)

	sub.Handle("/sources", requireAuth(cfg, http.HandlerFunc(a.handleSearchSources))).Methods(http.MethodGet, http.MethodOptions)
	sub.Handle("/sources/{id}", requireAuth(cfg, http.HandlerFunc(a.handleGetSource))).Methods(http.MethodGet, http.MethodOptions)
	sub.Handle("/sources/{id}/metadata/", requireAuth(cfg, http.HandlerFunc(a.handleMetadata))).Methods(http.MethodGet, http.MethodOptions)

	sub.Handle("/sinks", requireAuth(cfg, http.HandlerFunc(a.handleSearchSinks))).Methods(http.MethodGet, http.MethodOptions)
	sub.Handle("/sinks/{id}", requireAuth(cfg, http.HandlerFunc(a.handleGetSink))).Methods(http.MethodGet, http.MethodOptions)
	sub.Handle("/sinks/{id}/metadata/", requireAuth(cfg, http.HandlerFunc(a.handleMetadata))).Methods(http.MethodGet, http.MethodOptions)

	sub.HandleFunc("/structure/update", a.handleMaintenanceUpdate).Methods(http.MethodPut, http.MethodOptions)

	return recoverer(requestLoggingMiddleware(requestIDMiddleware(withCORS(r))))
}

// requireAuth is a pluggable ambient authentication guard: when no API key
// is configured it is a no-op, otherwise it requires a matching X-API-Key
// header.
func requireAuth(cfg *config.Config, next http.Handler) http.Handler {
	if cfg.APIKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !secretsEqual(r.Header.Get("X-API-Key"), cfg.APIKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "unauthorized"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
