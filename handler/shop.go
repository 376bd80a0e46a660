package handler

import (
	"net/http"

	"opsboard/commerce"
)

// ShopHandler serves the upstream-backed read endpoints. Orders triggers an
// on-demand reconciliation; Stats and Products never mutate the store.
type ShopHandler struct {
	Rec *commerce.Reconciler
}

func NewShopHandler(rec *commerce.Reconciler) *ShopHandler {
	return &ShopHandler{Rec: rec}
}

func (h *ShopHandler) Orders(w http.ResponseWriter, r *http.Request) {
	records, err := h.Rec.SyncNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ShopHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Rec.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ShopHandler) Products(w http.ResponseWriter, r *http.Request) {
	records, err := h.Rec.Products(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
