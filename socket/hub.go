package socket

import (
	"encoding/json"

	"opsboard/pkg/logger"
	"opsboard/store"
)

// Event names pushed to connected dashboards.
const (
	InitEvent     = "init"            // Full store snapshot, sent once on connect
	DataEvent     = "data_update"     // A collection record changed
	ActivityEvent = "activity_update" // New activity log entry
	SettingsEvent = "settings_update" // Settings map changed
	OrdersEvent   = "orders_update"   // Orders collection re-synced from upstream
)

// WSMessage is the wire envelope for every event sent to viewers.
type WSMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans store-change events out to every connected viewer. Delivery is
// best-effort: there is no acknowledgment and no queueing for viewers that
// connect later. A new viewer instead receives a full snapshot on connect.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan WSMessage

	clients map[*Client]bool
	store   *store.Store
}

func NewHub(st *store.Store) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan WSMessage),
		clients:    make(map[*Client]bool),
		store:      st,
	}
}

// Notify delivers payload to every connected viewer under the given event
// name. Safe to call from any goroutine.
func (h *Hub) Notify(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", event, err)
		return
	}
	h.Broadcast <- WSMessage{Event: event, Payload: raw}
}

// LogActivity records a human-readable mutation summary in the bounded
// activity log. The store persists before this returns, so a viewer reacting
// to the follow-up activity_update always re-reads state at least as new as
// the event.
func (h *Hub) LogActivity(action, detail string) (store.Record, error) {
	return h.store.AddActivity(action, detail)
}

// Run owns the client set. It must run in its own goroutine, started once at
// boot.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			// Hand the new viewer the full current state so it starts
			// consistent; after that it only needs the incremental events.
			snapshot, err := json.Marshal(h.store.Snapshot())
			if err != nil {
				logger.Sugar.Errorf("Error marshalling snapshot: %v", err)
				break
			}
			initMsg, _ := json.Marshal(WSMessage{Event: InitEvent, Payload: snapshot})
			client.Send <- initMsg
			logger.Sugar.Infof("Viewer connected (%d active)", len(h.clients))

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				logger.Sugar.Infof("Viewer disconnected (%d active)", len(h.clients))
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					// Send buffer full: the viewer is lagging. Drop it here so
					// the hub never blocks; its pumps will shut down on close.
					logger.Sugar.Warn("Viewer send buffer full, dropping connection")
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}
