// Package health provides the liveness and readiness probes of the admin
// server.
//
//   - /healthz — liveness; a process that can serve HTTP is alive, so this
//     always returns 200 OK.
//   - /readyz  — readiness; returns 200 only when every registered [Checker]
//     passes. Typical checkers probe the memory store connection pool and
//     configured MCP servers.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map carrying the per-checker outcome.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A dependency that cannot
// answer within this window is reported as failing rather than holding the
// probe open.
const checkTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil when the dependency
// is usable and an error describing the failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "memory", "mcp"). It appears
	// as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// report is the JSON response body for both probes.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz answers 200 when every checker passes and 503 otherwise. Each
// checker runs with a [checkTimeout] deadline derived from the request
// context, so a hung dependency cannot wedge the probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, allOK := h.runChecks(r.Context())

	res := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true
	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, allOK
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
