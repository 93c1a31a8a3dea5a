package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/middleware"
	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/quantafons/bus-telemetry/internal/telemetry"
)

const (
	analyticsWindowDays = 30
	alertListLimit      = 50
)

// QueryHandler serves the read side consumed by the dashboard web layer.
type QueryHandler struct {
	store *db.Store
}

// NewQueryHandler creates the query handler.
func NewQueryHandler(store *db.Store) *QueryHandler {
	return &QueryHandler{store: store}
}

// vehicleForTenant loads a vehicle and enforces tenant ownership.
func (h *QueryHandler) vehicleForTenant(r *http.Request, w http.ResponseWriter) *models.Vehicle {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), mux.Vars(r)["id"])
	if err != nil || vehicle.TenantID != claims.TenantID {
		writeError(w, http.StatusNotFound, "Bus not found")
		return nil
	}
	return vehicle
}

// LatestSample returns the newest persisted sample for a vehicle.
func (h *QueryHandler) LatestSample(w http.ResponseWriter, r *http.Request) {
	vehicle := h.vehicleForTenant(r, w)
	if vehicle == nil {
		return
	}

	sample, err := h.store.Telemetry.Latest(r.Context(), vehicle.ID.Hex())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No telemetry recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// FuelAnalytics returns the efficiency report and fuel events for the
// trailing 30 days.
func (h *QueryHandler) FuelAnalytics(w http.ResponseWriter, r *http.Request) {
	vehicle := h.vehicleForTenant(r, w)
	if vehicle == nil {
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -analyticsWindowDays)
	samples, err := h.store.Telemetry.FindWindow(r.Context(), vehicle.ID.Hex(), from, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	report, err := telemetry.ComputeEfficiency(samples)
	if err != nil {
		if errors.Is(err, telemetry.ErrInsufficientData) {
			writeError(w, http.StatusBadRequest, "Insufficient data for analysis")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	events, err := h.store.FuelEvents.FindWindow(r.Context(), vehicle.ID.Hex(), from, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if events == nil {
		events = []models.FuelEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bus_name":   vehicle.Name,
		"efficiency": report,
		"events":     events,
	})
}

// Alerts lists the tenant's alerts, newest first, optionally filtered to
// unacknowledged ones via ?unacknowledged=true.
func (h *QueryHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	unackOnly := r.URL.Query().Get("unacknowledged") == "true"
	alerts, err := h.store.Alerts.FindByTenant(r.Context(), claims.TenantID, unackOnly, alertListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// AcknowledgeAlert marks an alert acknowledged by the caller.
func (h *QueryHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	err := h.store.Alerts.Acknowledge(r.Context(), mux.Vars(r)["id"], claims.TenantID, claims.UserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Alert acknowledged successfully"})
}
