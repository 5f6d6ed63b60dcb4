// Package handler contains the HTTP request handlers of the species catalog.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, a function with the right signature (http.HandlerFunc).
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (URL params, body, signals)
// 2. Call the service layer or the catalog core
// 3. Write the HTTP response (JSON, an HTML page, or SSE patches)
//
// Handlers hold no business rules: validation lives in the validation
// package, authorization in the service, dialog rules in the catalog core.
package handler

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// StaticHandler serves the embedded static/ directory.
// Mount it with http.StripPrefix("/static/", ...).
func StaticHandler(assets fs.FS) (http.Handler, error) {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}
	return http.FileServer(http.FS(sub)), nil
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports whether the server and its dependencies are up.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with no checks.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: map[string]HealthCheck{}, logger: logger}
}

// Add registers a named check, e.g. "database" or "redis".
func (h *HealthHandler) Add(name string, check HealthCheck) {
	h.checks[name] = check
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth runs every check with a short timeout.
//
// HTTP: GET /healthz
// 200 {"status":"ok"} when all checks pass, 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
