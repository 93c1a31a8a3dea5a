package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/models"
)

type credentialCacheEntry struct {
	token     string
	expiresAt time.Time
}

// VehicleAuthenticator resolves a (vehicle id, token) pair to a registry
// vehicle. Successful bcrypt comparisons are cached for a short TTL so the
// per-sample cost stays one map lookup on the hot path.
type VehicleAuthenticator struct {
	vehicles db.VehicleCollection
	ttl      time.Duration
	cache    sync.Map // vehicle id -> credentialCacheEntry
}

// NewVehicleAuthenticator creates an authenticator over the vehicle registry.
func NewVehicleAuthenticator(vehicles db.VehicleCollection, cacheTTL time.Duration) *VehicleAuthenticator {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &VehicleAuthenticator{vehicles: vehicles, ttl: cacheTTL}
}

// Authenticate verifies the per-vehicle credential and returns the vehicle.
// Returns ErrUnknownVehicle when the id resolves to nothing and
// ErrCredentialMismatch when the token does not match.
func (a *VehicleAuthenticator) Authenticate(ctx context.Context, vehicleID, token string) (*models.Vehicle, error) {
	if token == "" {
		return nil, ErrCredentialMismatch
	}

	vehicle, err := a.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUnknownVehicle
		}
		return nil, err
	}

	if raw, ok := a.cache.Load(vehicleID); ok {
		entry := raw.(credentialCacheEntry)
		if time.Now().Before(entry.expiresAt) {
			if subtle.ConstantTimeCompare([]byte(entry.token), []byte(token)) == 1 {
				return vehicle, nil
			}
		} else {
			a.cache.Delete(vehicleID)
		}
	}

	if !CheckVehicleToken(token, vehicle.TokenHash) {
		return nil, ErrCredentialMismatch
	}

	a.cache.Store(vehicleID, credentialCacheEntry{
		token:     token,
		expiresAt: time.Now().Add(a.ttl),
	})
	return vehicle, nil
}
