// Package realtime fans processed telemetry updates out to connected
// dashboard subscribers over WebSocket. Delivery is at-most-once to whoever
// is connected; reconnecting clients re-sync from the query boundary.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/metrics"
	"github.com/quantafons/bus-telemetry/internal/models"
)

// Hub routes updates to tenant-scoped subscribers and per-vehicle tracking
// subscribers.
type Hub struct {
	mu       sync.RWMutex
	tenants  map[string]map[string]*subscriber
	vehicles map[string]map[string]*subscriber
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		tenants:  make(map[string]map[string]*subscriber),
		vehicles: make(map[string]map[string]*subscriber),
	}
}

// PublishUpdate delivers one update to the tenant channel and to any
// tracking subscriptions for the vehicle. Slow subscribers are skipped, not
// waited for; a failure to deliver never affects ingestion.
func (h *Hub) PublishUpdate(tenantID string, update models.TelemetryUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		log.WithError(err).Error("Failed to marshal realtime update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.tenants[tenantID] {
		sub.trySend(payload)
	}
	for _, sub := range h.vehicles[update.VehicleID] {
		sub.trySend(payload)
	}
}

// SubscribeTenant registers a subscriber for all of a tenant's vehicles.
func (h *Hub) SubscribeTenant(tenantID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return
	}
	if h.tenants[tenantID] == nil {
		h.tenants[tenantID] = make(map[string]*subscriber)
	}
	h.tenants[tenantID][sub.id] = sub
}

// SubscribeVehicle registers a tracking subscriber for one vehicle.
func (h *Hub) SubscribeVehicle(vehicleID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return
	}
	if h.vehicles[vehicleID] == nil {
		h.vehicles[vehicleID] = make(map[string]*subscriber)
	}
	h.vehicles[vehicleID][sub.id] = sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, subs := range h.tenants {
		if _, ok := subs[sub.id]; ok {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(h.tenants, key)
			}
		}
	}
	for key, subs := range h.vehicles {
		if _, ok := subs[sub.id]; ok {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(h.vehicles, key)
			}
		}
	}
}

// Close disconnects all subscribers and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.tenants {
		for _, sub := range subs {
			sub.close()
		}
	}
	for _, subs := range h.vehicles {
		for _, sub := range subs {
			sub.close()
		}
	}
	h.tenants = make(map[string]map[string]*subscriber)
	h.vehicles = make(map[string]map[string]*subscriber)
}

func newSubscriber(buffer int) *subscriber {
	return &subscriber{
		id:   uuid.NewString(),
		send: make(chan []byte, buffer),
	}
}

type subscriber struct {
	id   string
	send chan []byte

	closeOnce sync.Once
}

func (s *subscriber) trySend(payload []byte) {
	select {
	case s.send <- payload:
	default:
		metrics.RealtimeDrops.Inc()
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.send) })
}
