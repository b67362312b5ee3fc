package endpoint

import (
	"net/http"

	"github.com/remotezip/remotezip/internal/engine"
	"github.com/remotezip/remotezip/internal/server"
)

// HealthAPI serves liveness and a tiny diagnostics surface (open handle
// count), mirroring the teacher's health endpoint package name even though
// its own implementation isn't present in the retrieval pack.
type HealthAPI struct {
	reg *engine.Registry
}

func NewHealthAPI(reg *engine.Registry) *HealthAPI {
	return &HealthAPI{reg: reg}
}

// AddEndpoints registers GET /v0/health on mux.
func (h *HealthAPI) AddEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("/v0/health", h.handleHealth)
}

func (h *HealthAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.SendResponse(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"open_archives": h.reg.Len(),
	}, nil)
}
