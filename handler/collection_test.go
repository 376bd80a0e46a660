package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/pkg/logger"
	"opsboard/store"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type recordedEvent struct {
	Event   string
	Payload any
}

// busRecorder satisfies Bus: activity entries go to the real store, events
// are captured for assertions.
type busRecorder struct {
	st     *store.Store
	events []recordedEvent
}

func (b *busRecorder) Notify(event string, payload any) {
	b.events = append(b.events, recordedEvent{Event: event, Payload: payload})
}

func (b *busRecorder) LogActivity(action, detail string) (store.Record, error) {
	return b.st.AddActivity(action, detail)
}

func newTestAPI(t *testing.T) (*store.Store, *busRecorder, http.Handler) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	bus := &busRecorder{st: st}
	col := NewCollectionHandler(st, bus)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Get("/data", col.FullData)
		api.Get("/ai/insights", col.Insights)
		api.Get("/settings", col.GetSettings)
		api.Put("/settings", col.UpdateSettings)
		api.Get("/{collection}", col.List)
		api.Post("/{collection}", col.Create)
		api.Put("/{collection}", col.BulkReplace)
		api.Get("/{collection}/{id}", col.GetOne)
		api.Put("/{collection}/{id}", col.Update)
		api.Delete("/{collection}/{id}", col.Delete)
	})
	return st, bus, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateFlow(t *testing.T) {
	st, bus, api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/api/clients", `{"name":"Acme","value":1200}`)
	require.Equal(t, http.StatusCreated, w.Code)
	item := decode(t, w)
	assert.EqualValues(t, 1, item["id"])
	assert.Equal(t, "Acme", item["name"])

	// data_update first, then activity_update carrying the newest entry.
	require.Len(t, bus.events, 2)
	assert.Equal(t, "data_update", bus.events[0].Event)
	update, ok := bus.events[0].Payload.(dataUpdate)
	require.True(t, ok)
	assert.Equal(t, "clients", update.Collection)
	assert.Equal(t, "create", update.Action)
	assert.Equal(t, "Acme", update.Item["name"])

	assert.Equal(t, "activity_update", bus.events[1].Event)
	entry, ok := bus.events[1].Payload.(store.Record)
	require.True(t, ok)
	assert.Equal(t, "New client", entry["action"])
	assert.Equal(t, "Added: Acme", entry["detail"])

	log, err := st.List("activity")
	require.NoError(t, err)
	require.Len(t, log, 1)
}

func TestCreateUsesDescriptionFallback(t *testing.T) {
	_, bus, api := newTestAPI(t)

	w := do(t, api, http.MethodPost, "/api/finance", `{"description":"Office rent"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	entry := bus.events[1].Payload.(store.Record)
	assert.Equal(t, "Added: Office rent", entry["detail"])

	w = do(t, api, http.MethodPost, "/api/finance", `{"amount":12}`)
	require.Equal(t, http.StatusCreated, w.Code)
	entry = bus.events[3].Payload.(store.Record)
	assert.Equal(t, "Added: n/a", entry["detail"])
}

func TestCreateReservedCollection(t *testing.T) {
	_, bus, api := newTestAPI(t)

	for _, name := range []string{"orders", "activity", "settings"} {
		w := do(t, api, http.MethodPost, "/api/"+name, `{"name":"x"}`)
		assert.Equal(t, http.StatusForbidden, w.Code, name)
		assert.Equal(t, "collection is reserved", decode(t, w)["error"])
	}
	assert.Empty(t, bus.events)
}

func TestReservedCollectionsStayReadable(t *testing.T) {
	st, _, api := newTestAPI(t)

	require.NoError(t, st.ReplaceAll("orders", []store.Record{{"id": 9, "status": "processing"}}))

	w := do(t, api, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	var orders []store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
}

func TestUnknownCollection(t *testing.T) {
	_, _, api := newTestAPI(t)

	w := do(t, api, http.MethodGet, "/api/widgets", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "collection not found", decode(t, w)["error"])

	w = do(t, api, http.MethodPost, "/api/widgets", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOne(t *testing.T) {
	_, _, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/clients", `{"name":"Acme"}`)

	w := do(t, api, http.MethodGet, "/api/clients/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decode(t, w)["name"])

	w = do(t, api, http.MethodGet, "/api/clients/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, api, http.MethodGet, "/api/clients/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMergesFields(t *testing.T) {
	_, bus, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/projects", `{"name":"Site","status":"review","budget":6000}`)

	w := do(t, api, http.MethodPut, "/api/projects/1", `{"progress":90}`)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)
	assert.EqualValues(t, 90, item["progress"])
	assert.Equal(t, "review", item["status"])
	assert.EqualValues(t, 6000, item["budget"])

	update := bus.events[2].Payload.(dataUpdate)
	assert.Equal(t, "update", update.Action)

	w = do(t, api, http.MethodPut, "/api/projects/5", `{"progress":90}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	_, bus, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/clients", `{"name":"Acme"}`)

	w := do(t, api, http.MethodDelete, "/api/clients/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	update := bus.events[2].Payload.(dataUpdate)
	assert.Equal(t, "delete", update.Action)
	assert.Equal(t, 1, update.ID)
	entry := bus.events[3].Payload.(store.Record)
	assert.Equal(t, "Removed from clients: Acme", entry["detail"])

	w = do(t, api, http.MethodDelete, "/api/clients/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkReplace(t *testing.T) {
	st, bus, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/team", `{"name":"old"}`)

	w := do(t, api, http.MethodPut, "/api/team", `[{"id":7,"name":"seven"},{"id":3,"name":"three"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	team, err := st.List("team")
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.EqualValues(t, 7, team[0]["id"])

	update := bus.events[2].Payload.(dataUpdate)
	assert.Equal(t, "bulk", update.Action)
	assert.Len(t, update.Items, 2)
}

func TestSettings(t *testing.T) {
	_, bus, api := newTestAPI(t)

	w := do(t, api, http.MethodPut, "/api/settings", `{"email":"ops@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode(t, w)
	assert.Equal(t, "ops@example.com", settings["email"])
	assert.Equal(t, "Studio", settings["companyName"])

	require.Len(t, bus.events, 1)
	assert.Equal(t, "settings_update", bus.events[0].Event)

	w = do(t, api, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", decode(t, w)["email"])
}

func TestFullData(t *testing.T) {
	_, _, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/clients", `{"name":"Acme"}`)

	w := do(t, api, http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)
	assert.Contains(t, snap, "clients")
	assert.Contains(t, snap, "settings")
	assert.Contains(t, snap, "activity")
}

func TestInsightsEndpoint(t *testing.T) {
	_, _, api := newTestAPI(t)

	do(t, api, http.MethodPost, "/api/team", `{"name":"Dana","workload":95}`)

	w := do(t, api, http.MethodGet, "/api/ai/insights", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out)
	assert.Equal(t, "workload", out[0]["type"])
	assert.Equal(t, "high", out[0]["priority"])
}
