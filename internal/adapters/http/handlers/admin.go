package handlers

import (
	"net/http"

	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/wall"
)

// AdminHandler carries the operator surface: runtime policy updates and
// audit log rotation.
type AdminHandler struct {
	wall     *wall.Wall
	auditLog *audit.Log
}

func NewAdminHandler(w *wall.Wall, auditLog *audit.Log) *AdminHandler {
	return &AdminHandler{wall: w, auditLog: auditLog}
}

// SetPolicy replaces the wall's runtime policy and echoes the applied
// snapshot.
// POST /api/v1/admin/policy
func (h *AdminHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeBody[wall.PolicyDoc](w, r)
	if !ok {
		return
	}
	h.wall.SetPolicy(*doc)
	respond(w, r, http.StatusOK, h.wall.Policy())
}

// GetPolicy returns the current runtime policy.
// GET /api/v1/admin/policy
func (h *AdminHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.wall.Policy())
}

// RotateAudit forces an audit log rotation.
// POST /api/v1/admin/audit/rotate
func (h *AdminHandler) RotateAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.auditLog.Rotate(); err != nil {
		respondError(w, r, "internal_error", "audit rotation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"rotated": true,
		"path":    h.auditLog.Path(),
	})
}
