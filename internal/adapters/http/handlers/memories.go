package handlers

import (
	"net/http"
	"strings"

	"github.com/longregen/cogito/internal/memory"
)

// MemoryHandler exposes recall, search, forget, and the derived profile.
type MemoryHandler struct {
	svc *memory.Service
}

func NewMemoryHandler(svc *memory.Service) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// Recent returns the user's newest memories, newest first.
// GET /api/v1/memories/{userID}?k=20
func (h *MemoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlParam(w, r, "userID")
	if !ok {
		return
	}
	k := parseIntQuery(r, "k", 20)

	records, err := h.svc.Recent(r.Context(), userID, k)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"user_id":  userID,
		"memories": records,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Search runs similarity recall over the user's memories.
// POST /api/v1/memories/{userID}/search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlParam(w, r, "userID")
	if !ok {
		return
	}
	req, ok := decodeBody[searchRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, r, "invalid_request", "query is required", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = 10
	}

	results, err := h.svc.Search(r.Context(), userID, req.Query, req.K)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"user_id": userID,
		"query":   req.Query,
		"results": results,
	})
}

// Forget deletes memories matched by id or query. The target comes from
// the "target" query parameter.
// DELETE /api/v1/memories/{userID}?target=mem_abc123
func (h *MemoryHandler) Forget(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlParam(w, r, "userID")
	if !ok {
		return
	}
	target := strings.TrimSpace(r.URL.Query().Get("target"))
	if target == "" {
		respondError(w, r, "invalid_request", "target is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.svc.Forget(r.Context(), userID, target)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"user_id": userID,
		"deleted": deleted,
	})
}

// Profile returns usage aggregates derived from the user's turns.
// GET /api/v1/users/{userID}/profile
func (h *MemoryHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlParam(w, r, "userID")
	if !ok {
		return
	}

	profile, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, profile)
}
