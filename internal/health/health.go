// Package health serves the liveness and readiness probes.
//
//   - /healthz reports 200 as long as the process can serve HTTP.
//   - /readyz runs every registered [Checker] concurrently and reports 200
//     only when all of them pass.
//
// Both respond with {"status": "ok"|"fail", "checks": {name: result}}.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/strategydeck/internal/resilience"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always returns 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 when every checker passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		failed bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				failed = true
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if failed {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the GET /healthz and GET /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// CircuitSource exposes the per-provider breakers of a failover chain.
type CircuitSource interface {
	Providers() []string
	Breaker(name string) *resilience.Breaker
}

// ChatCircuits passes while at least one chat provider's circuit admits
// calls. A nil source means no upstream is configured; the deterministic
// responder answers every question, so the check passes.
func ChatCircuits(src CircuitSource) Checker {
	return Checker{
		Name: "chat",
		Check: func(context.Context) error {
			if src == nil {
				return nil
			}
			for _, name := range src.Providers() {
				if b := src.Breaker(name); b == nil || b.State() != resilience.StateOpen {
					return nil
				}
			}
			return errors.New("all chat provider circuits open")
		},
	}
}

// RealtimeKey passes when an upstream key for realtime sessions is set.
func RealtimeKey(configured func() bool) Checker {
	return Checker{
		Name: "realtime",
		Check: func(context.Context) error {
			if configured == nil || !configured() {
				return errors.New("realtime API key not configured")
			}
			return nil
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
