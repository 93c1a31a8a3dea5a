package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from other origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades HTTP requests into hub subscriptions. Both endpoints
// sit behind the JWT middleware, which scopes the connection to the caller's
// tenant.
type WSHandler struct {
	hub      *Hub
	vehicles db.VehicleCollection
}

// NewWSHandler creates a WebSocket handler over a hub.
func NewWSHandler(hub *Hub, vehicles db.VehicleCollection) *WSHandler {
	return &WSHandler{hub: hub, vehicles: vehicles}
}

// ServeTenant subscribes the caller to their tenant's update channel.
func (h *WSHandler) ServeTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub := newSubscriber(sendBufferSize)
	h.hub.SubscribeTenant(claims.TenantID, sub)
	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// ServeVehicle subscribes the caller to a single vehicle's tracking feed.
func (h *WSHandler) ServeVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	vehicleID := mux.Vars(r)["id"]
	if vehicleID == "" {
		http.Error(w, "Vehicle id required", http.StatusBadRequest)
		return
	}
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil || vehicle.TenantID != claims.TenantID {
		http.Error(w, "Bus not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub := newSubscriber(sendBufferSize)
	h.hub.SubscribeVehicle(vehicleID, sub)
	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; subscriptions are read-only. It exists
// to process control frames and to notice disconnects.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *subscriber) {
	defer func() {
		h.hub.unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
