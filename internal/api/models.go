package api

import (
	"net/http"
)

// modelEntry is one row of the /v1/models listing.
type modelEntry struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	OwnedBy     string `json:"owned_by"`
	DisplayName string `json:"display_name,omitempty"`
	Tier        string `json:"tier,omitempty"`
	CreditCost  int    `json:"credit_cost,omitempty"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// ListModels handles GET /v1/models. Catalog models come first with tier
// metadata; registered providers' default models follow.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	list := modelList{Object: "list"}

	for _, info := range h.catalog.All() {
		list.Data = append(list.Data, modelEntry{
			ID:          info.FriendlyID,
			Object:      "model",
			OwnedBy:     info.Provider,
			DisplayName: info.DisplayName,
			Tier:        string(info.Tier),
			CreditCost:  info.CreditCost,
		})
		seen[info.FriendlyID] = true
	}

	for _, d := range h.registry.List() {
		if d.DefaultModel == "" || seen[d.DefaultModel] {
			continue
		}
		list.Data = append(list.Data, modelEntry{
			ID:      d.DefaultModel,
			Object:  "model",
			OwnedBy: d.ID,
		})
		seen[d.DefaultModel] = true
	}

	h.writeJSON(w, http.StatusOK, list)
}
