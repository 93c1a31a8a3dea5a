package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/auth"
	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/metrics"
	"github.com/quantafons/bus-telemetry/internal/middleware"
	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/quantafons/bus-telemetry/internal/pipeline"
	"github.com/quantafons/bus-telemetry/internal/telemetry"
)

// TelemetryHandler terminates the request/response half of the ingestion
// boundary and owns vehicle registration.
type TelemetryHandler struct {
	engine        *pipeline.Engine
	authenticator *auth.VehicleAuthenticator
	vehicles      db.VehicleCollection
}

// NewTelemetryHandler creates the ingestion handler.
func NewTelemetryHandler(engine *pipeline.Engine, authenticator *auth.VehicleAuthenticator, vehicles db.VehicleCollection) *TelemetryHandler {
	return &TelemetryHandler{
		engine:        engine,
		authenticator: authenticator,
		vehicles:      vehicles,
	}
}

// Receive handles one pushed sample: authenticate the vehicle credential,
// then hand the raw sample to the pipeline and report its outcome.
func (h *TelemetryHandler) Receive(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]
	token := r.Header.Get("X-API-Key")
	if token == "" {
		metrics.SamplesRejected.WithLabelValues("unauthenticated").Inc()
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	vehicle, err := h.authenticator.Authenticate(r.Context(), vehicleID, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownVehicle), errors.Is(err, auth.ErrCredentialMismatch):
			metrics.SamplesRejected.WithLabelValues("unauthenticated").Inc()
			writeError(w, http.StatusForbidden, "Invalid vehicle ID or API key")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	var raw models.RawSample
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := h.engine.Process(r.Context(), vehicle, &raw); err != nil {
		switch {
		case errors.Is(err, telemetry.ErrInvalidSample):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, pipeline.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, "Service is shutting down")
		default:
			log.WithFields(log.Fields{"vehicle_id": vehicleID}).
				WithError(err).Error("Error processing telemetry")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Telemetry received successfully"})
}

var registrarRoles = map[string]bool{
	"TransportManager": true,
	"SchoolAdmin":      true,
	"SuperAdmin":       true,
}

// Register creates a bus in the registry and issues its one-time credential.
func (h *TelemetryHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !registrarRoles[claims.Role] {
		writeError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var req models.RegisterVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.RegistrationNo = strings.ToUpper(strings.TrimSpace(req.RegistrationNo))
	if req.Name == "" || req.RegistrationNo == "" {
		writeError(w, http.StatusBadRequest, "Bus name and registration number required")
		return
	}
	if req.Capacity == 0 {
		req.Capacity = 50
	}
	if req.TankCapacity == 0 {
		req.TankCapacity = 100.0
	}
	if req.Capacity < 1 || req.Capacity > 200 {
		writeError(w, http.StatusBadRequest, "Invalid capacity value")
		return
	}
	if req.TankCapacity < 10 || req.TankCapacity > 1000 {
		writeError(w, http.StatusBadRequest, "Invalid fuel tank capacity")
		return
	}

	if _, err := h.vehicles.FindByRegistration(r.Context(), claims.TenantID, req.RegistrationNo); err == nil {
		writeError(w, http.StatusBadRequest, "Registration number already exists")
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := auth.GenerateVehicleToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	hash, err := auth.HashVehicleToken(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	vehicle := models.Vehicle{
		TenantID:       claims.TenantID,
		Name:           req.Name,
		RegistrationNo: req.RegistrationNo,
		Capacity:       req.Capacity,
		TankCapacity:   req.TankCapacity,
		TokenHash:      hash,
		IsActive:       true,
	}
	id, err := h.vehicles.InsertVehicle(r.Context(), vehicle)
	if err != nil {
		log.WithError(err).Error("Error creating bus")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, models.RegisterVehicleResponse{
		VehicleID: id,
		Token:     token,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
