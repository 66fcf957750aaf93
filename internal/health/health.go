// Package health serves liveness and readiness probes for the Sonara
// control plane and agent runtime.
//
// Liveness (/healthz) answers 200 whenever the process can serve HTTP.
// Readiness (/readyz) runs every registered [Checker] against the backing
// dependencies (call store, event dedup store, provider credentials) and
// answers 503 until all of them pass, so orchestrators hold traffic back
// while a dependency is down.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkTimeout bounds a single readiness check. A hung dependency must not
// hold the probe past the kubelet's own timeout.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency can
// serve Sonara traffic and a descriptive error otherwise. It must respect
// context cancellation.
type Checker struct {
	// Name labels the check in the JSON response, e.g. "postgres" or
	// "event-dedup".
	Name string

	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates readiness checkers per request. The checker list is
// fixed at construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler over the given checkers. Readiness evaluates them
// sequentially in the order given.
func New(checkers ...Checker) *Handler {
	cs := make([]Checker, len(checkers))
	copy(cs, checkers)
	return &Handler{checkers: cs}
}

// Healthz is the liveness probe. It always reports ok.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, report{Status: "ok"})
}

// Readyz is the readiness probe. It reports ok only when every checker
// passes, with per-checker results in the body either way.
func (h *Handler) Readyz(c *gin.Context) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, chk := range h.checkers {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		err := chk.Check(ctx)
		cancel()

		if err != nil {
			checks[chk.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[chk.Name] = "ok"
		}
	}

	res := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, res)
}

// Routes mounts the probe endpoints on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
}
