// Package health serves the liveness and readiness probes of
// `voicememo serve`.
//
//   - /healthz always answers 200 while the process can serve HTTP.
//   - /readyz answers 200 only when every [Checker] passes: the note store
//     is reachable and the transcription chain admits calls.
//
// Both respond with {"status": "ok"|"fail", "checks": {name: result}}.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 5 * time.Second

// Checker is one named readiness probe. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by stores that can verify their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker probes p.
func StoreChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// ErrUnavailable is reported by [CircuitChecker] when no provider in the
// chain admits calls.
var ErrUnavailable = errors.New("health: no provider available")

// CircuitChecker fails while healthy reports false, i.e. while every
// circuit breaker of a provider chain is open.
func CircuitChecker(name string, healthy func() bool) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if healthy() {
			return nil
		}
		return ErrUnavailable
	}}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New creates a Handler that runs checkers concurrently on every /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		timeout:  DefaultCheckTimeout,
	}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := h.Check(r.Context())

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for _, c := range h.checkers {
		if err := errs[c.Name]; err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Check runs every checker and returns the failures by name.
func (h *Handler) Check(ctx context.Context) map[string]error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = make(map[string]error)
	)
	for _, c := range h.checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			if err := c.Check(cctx); err != nil {
				mu.Lock()
				errs[c.Name] = err
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}

// Summary renders the result of [Handler.Check] as one line per checker,
// sorted by name. Used by the CLI status output.
func (h *Handler) Summary(ctx context.Context) []string {
	errs := h.Check(ctx)
	lines := make([]string, 0, len(h.checkers))
	for _, c := range h.checkers {
		state := "ok"
		if err := errs[c.Name]; err != nil {
			state = "fail: " + err.Error()
		}
		lines = append(lines, fmt.Sprintf("%s: %s", c.Name, state))
	}
	sort.Strings(lines)
	return lines
}

// Register adds the /healthz and /readyz routes to mux.
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
