package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps map[string]Pinger
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler checks each named dependency on every request.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	c, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status := xhttp.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(c); err != nil {
			checks[name] = err.Error()
			status = xhttp.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != xhttp.StatusOK {
		overall = "unhealthy"
	}
	writeJSON(ctx, status, map[string]any{"status": overall, "checks": checks})
}
