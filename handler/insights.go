package handler

import (
	"net/http"

	"opsboard/insights"
)

// Insights serves the derived advisory view, computed fresh from the current
// snapshot on every request.
func (h *CollectionHandler) Insights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, insights.Compute(h.Store.Snapshot()))
}
