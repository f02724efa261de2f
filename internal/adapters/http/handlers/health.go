package handlers

import (
	"net/http"
)

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
