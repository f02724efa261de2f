package handlers

import (
	"net/http"

	"github.com/longregen/cogito/internal/adapters/http/middleware"
	"github.com/longregen/cogito/internal/pipeline"
)

// TurnHandler exposes the pipeline over HTTP.
type TurnHandler struct {
	orch *pipeline.Orchestrator
}

func NewTurnHandler(orch *pipeline.Orchestrator) *TurnHandler {
	return &TurnHandler{orch: orch}
}

// HandleTurn runs one utterance through the pipeline and returns the
// outcome. The user comes from the body when present, otherwise from the
// authenticated header identity.
func (h *TurnHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[pipeline.TurnRequest](w, r)
	if !ok {
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(r.Context())
	}

	outcome, err := h.orch.HandleTurn(r.Context(), *req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, outcome)
}
