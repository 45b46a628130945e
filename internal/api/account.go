package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/cliexec"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

// QuotaStatus handles GET /v1/account/quota: per-tier remaining requests
// for the current month.
func (h *Handler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	remaining, err := h.gate.Remaining(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		h.writeError(w, gwerrors.NewInternalError("", "", "quota lookup failed: "+err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   true,
		"remaining": remaining,
	})
}

// CreditBalance handles GET /v1/account/credits.
func (h *Handler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	user := UserFromContext(r.Context())
	balance, err := h.credits.Balance(r.Context(), user)
	if err != nil {
		h.writeError(w, gwerrors.NewInternalError("", "", "balance lookup failed: "+err.Error()))
		return
	}
	spent, err := h.credits.TotalSpent(r.Context(), user)
	if err != nil {
		h.writeError(w, gwerrors.NewInternalError("", "", "spend lookup failed: "+err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":     true,
		"balance":     balance,
		"total_spent": spent,
	})
}

type setKeyRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// SetUserKey handles PUT /v1/account/keys: stores the caller's own
// provider key.
func (h *Handler) SetUserKey(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "key storage is not writable in this deployment"))
		return
	}

	var req setKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "invalid JSON: "+err.Error()))
		return
	}
	if req.Provider == "" || req.Key == "" {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "provider and key are required"))
		return
	}
	if _, ok := h.registry.Get(req.Provider); !ok {
		h.writeError(w, gwerrors.NewNotFoundError(req.Provider, "", "unknown provider"))
		return
	}

	user := UserFromContext(r.Context())
	if err := h.keys.SetUserKey(r.Context(), user, req.Provider, req.Key); err != nil {
		h.writeError(w, gwerrors.NewInternalError(req.Provider, "", "store key: "+err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "provider": req.Provider})
}

// DeleteUserKey handles DELETE /v1/account/keys/{provider}.
func (h *Handler) DeleteUserKey(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "key storage is not writable in this deployment"))
		return
	}

	provider := r.PathValue("provider")
	user := UserFromContext(r.Context())
	if err := h.keys.DeleteUserKey(r.Context(), user, provider); err != nil {
		h.writeError(w, gwerrors.NewInternalError(provider, "", "delete key: "+err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "provider": provider})
}

// CLIStatus handles GET /v1/cli/status: probe results for every known tool.
func (h *Handler) CLIStatus(w http.ResponseWriter, r *http.Request) {
	type toolStatus struct {
		Tool          string `json:"tool"`
		Available     bool   `json:"available"`
		Authenticated bool   `json:"authenticated"`
		Version       string `json:"version,omitempty"`
		Error         string `json:"error,omitempty"`
	}

	out := make([]toolStatus, 0, len(cliexec.Tools()))
	for _, tool := range cliexec.Tools() {
		st := toolStatus{Tool: tool.ID}
		if h.cli != nil {
			probed := h.cli.Status(r.Context(), tool)
			st.Available = probed.Available
			st.Authenticated = probed.Authenticated
			st.Version = probed.Version
			st.Error = probed.Error
		}
		out = append(out, st)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}
