package handlers

import (
	"net/http"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/registry"
)

// ToolsHandler lists the sealed tool registry.
type ToolsHandler struct {
	reg *registry.Registry
}

func NewToolsHandler(reg *registry.Registry) *ToolsHandler {
	return &ToolsHandler{reg: reg}
}

// List returns registered tool specs, optionally filtered by risk tier or
// side effect class.
// GET /api/v1/tools?risk=confirm&side_effect=network
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := registry.Filter{
		Risk:       models.RiskTier(r.URL.Query().Get("risk")),
		SideEffect: models.SideEffect(r.URL.Query().Get("side_effect")),
	}
	specs := h.reg.List(filter)
	respond(w, r, http.StatusOK, map[string]any{
		"tools": specs,
		"count": len(specs),
	})
}
