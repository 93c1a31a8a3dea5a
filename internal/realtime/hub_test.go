package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveUpdate(t *testing.T, sub *subscriber) models.TelemetryUpdate {
	t.Helper()
	select {
	case payload := <-sub.send:
		var update models.TelemetryUpdate
		require.NoError(t, json.Unmarshal(payload, &update))
		return update
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return models.TelemetryUpdate{}
	}
}

func TestHub_TenantScopedDelivery(t *testing.T) {
	h := NewHub()
	defer h.Close()

	subA := newSubscriber(4)
	subB := newSubscriber(4)
	h.SubscribeTenant("tenant-a", subA)
	h.SubscribeTenant("tenant-b", subB)

	h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-1", SpeedKmh: 42})

	got := receiveUpdate(t, subA)
	assert.Equal(t, "bus-1", got.VehicleID)
	assert.Equal(t, 42.0, got.SpeedKmh)

	select {
	case <-subB.send:
		t.Fatal("update leaked across tenants")
	default:
	}
}

func TestHub_VehicleTracking(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := newSubscriber(4)
	h.SubscribeVehicle("bus-1", sub)

	h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-1"})
	h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-2"})

	got := receiveUpdate(t, sub)
	assert.Equal(t, "bus-1", got.VehicleID)
	assert.Empty(t, sub.send)
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := newSubscriber(1)
	h.SubscribeTenant("tenant-a", sub)

	// The buffer holds one update; the second is dropped, and publishing
	// never blocks.
	done := make(chan struct{})
	go func() {
		h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-1"})
		h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, sub.send, 1)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := newSubscriber(4)
	h.SubscribeTenant("tenant-a", sub)
	h.unsubscribe(sub)

	h.PublishUpdate("tenant-a", models.TelemetryUpdate{VehicleID: "bus-1"})
	assert.Empty(t, sub.send)
}

func TestHub_CloseDisconnects(t *testing.T) {
	h := NewHub()
	sub := newSubscriber(4)
	h.SubscribeTenant("tenant-a", sub)
	h.Close()

	_, open := <-sub.send
	assert.False(t, open)

	// Subscriptions after Close are refused with a closed channel.
	late := newSubscriber(4)
	h.SubscribeTenant("tenant-a", late)
	_, open = <-late.send
	assert.False(t, open)
}
