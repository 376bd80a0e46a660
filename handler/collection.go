package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"opsboard/pkg/logger"
	"opsboard/socket"
	"opsboard/store"
)

// ErrReservedCollection marks collections owned by a specialized sub-resource
// (the reconciler's orders, the bus's activity log, the settings map). They
// stay generically readable but reject generic writes.
var ErrReservedCollection = errors.New("collection is reserved")

var reservedWrites = map[string]bool{
	"orders":   true,
	"activity": true,
	"settings": true,
}

// Bus is the slice of the hub the gateway needs: fire-and-forget fan-out plus
// the activity log.
type Bus interface {
	Notify(event string, payload any)
	LogActivity(action, detail string) (store.Record, error)
}

// CollectionHandler serves the generic CRUD surface over every collection.
type CollectionHandler struct {
	Store *store.Store
	Bus   Bus
}

func NewCollectionHandler(st *store.Store, bus Bus) *CollectionHandler {
	return &CollectionHandler{Store: st, Bus: bus}
}

// dataUpdate is the payload of every data_update broadcast.
type dataUpdate struct {
	Collection string         `json:"collection"`
	Action     string         `json:"action"`
	Item       store.Record   `json:"item,omitempty"`
	ID         int            `json:"id,omitempty"`
	Items      []store.Record `json:"items,omitempty"`
}

// FullData returns the whole store, collections plus settings.
func (h *CollectionHandler) FullData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot())
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.List(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *CollectionHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := h.Store.GetByID(chi.URLParam(r, "collection"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if reservedWrites[collection] {
		writeError(w, ErrReservedCollection)
		return
	}
	var fields store.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	item, err := h.Store.Create(collection, fields)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logAndBroadcast(
		fmt.Sprintf("New %s", singularize(collection)),
		fmt.Sprintf("Added: %s", displayName(item)),
		dataUpdate{Collection: collection, Action: "create", Item: item},
	)
	writeJSON(w, http.StatusCreated, item)
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if reservedWrites[collection] {
		writeError(w, ErrReservedCollection)
		return
	}
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var fields store.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	item, err := h.Store.Update(collection, id, fields)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logAndBroadcast(
		fmt.Sprintf("Updated %s", singularize(collection)),
		fmt.Sprintf("Changed: %s", displayName(item)),
		dataUpdate{Collection: collection, Action: "update", Item: item},
	)
	writeJSON(w, http.StatusOK, item)
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if reservedWrites[collection] {
		writeError(w, ErrReservedCollection)
		return
	}
	id, err := recordID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	removed, err := h.Store.Delete(collection, id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logAndBroadcast(
		"Deleted",
		fmt.Sprintf("Removed from %s: %s", collection, displayName(removed)),
		dataUpdate{Collection: collection, Action: "delete", ID: id},
	)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// BulkReplace swaps in a whole new sequence for the collection. Incoming
// records are taken verbatim, ids included.
func (h *CollectionHandler) BulkReplace(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if reservedWrites[collection] {
		writeError(w, ErrReservedCollection)
		return
	}
	var records []store.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Store.ReplaceAll(collection, records); err != nil {
		writeError(w, err)
		return
	}

	h.logAndBroadcast(
		"Bulk update",
		fmt.Sprintf("%s fully replaced", collection),
		dataUpdate{Collection: collection, Action: "bulk", Items: records},
	)
	writeJSON(w, http.StatusOK, records)
}

func (h *CollectionHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Settings())
}

// UpdateSettings merges the body into the settings map; keys are never
// removed.
func (h *CollectionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	settings, err := h.Store.UpdateSettings(fields)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Bus.Notify(socket.SettingsEvent, settings)
	writeJSON(w, http.StatusOK, settings)
}

// logAndBroadcast runs the mutate-side tail shared by every write: activity
// entry first (which persists), then the data event, then the activity event.
func (h *CollectionHandler) logAndBroadcast(action, detail string, update dataUpdate) {
	entry, err := h.Bus.LogActivity(action, detail)
	h.Bus.Notify(socket.DataEvent, update)
	if err != nil {
		logger.Sugar.Errorf("Failed to record activity: %v", err)
		return
	}
	h.Bus.Notify(socket.ActivityEvent, entry)
}

func recordID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, store.ErrRecordNotFound
	}
	return id, nil
}

// displayName picks the human-readable label for activity entries: name, then
// description, then a placeholder.
func displayName(r store.Record) string {
	if name, ok := r["name"].(string); ok && name != "" {
		return name
	}
	if desc, ok := r["description"].(string); ok && desc != "" {
		return desc
	}
	return "n/a"
}

func singularize(collection string) string {
	if len(collection) > 1 && strings.HasSuffix(collection, "s") {
		return strings.TrimSuffix(collection, "s")
	}
	return collection
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUnknownCollection), errors.Is(err, store.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrReservedCollection):
		status = http.StatusForbidden
	default:
		logger.Sugar.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
