package api

import (
	"net/http"
)

// RegisterRoutes registers all gateway routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", h.ChatCompletions)
	mux.HandleFunc("GET /v1/models", h.ListModels)

	mux.HandleFunc("GET /v1/account/quota", h.QuotaStatus)
	mux.HandleFunc("GET /v1/account/credits", h.CreditBalance)
	mux.HandleFunc("PUT /v1/account/keys", h.SetUserKey)
	mux.HandleFunc("DELETE /v1/account/keys/{provider}", h.DeleteUserKey)

	mux.HandleFunc("GET /v1/cli/status", h.CLIStatus)

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)
}

// Health handles liveness checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles readiness checks, reporting config load state when a
// manager is attached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.cfg != nil {
		status := h.cfg.Status()
		resp["config_checksum"] = status.Checksum
		resp["config_loaded_at"] = status.LoadedAt
	}
	h.writeJSON(w, http.StatusOK, resp)
}
