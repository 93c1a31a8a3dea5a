package telemetry

import (
	"math"

	"github.com/quantafons/bus-telemetry/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

// InGeofence reports whether a point lies inside a circular geofence.
func InGeofence(lat, lon float64, fence *models.Geofence) bool {
	distance := HaversineKm(lat, lon, fence.CenterLat, fence.CenterLon)
	return distance <= fence.RadiusMeters/1000
}

// OutsideActiveGeofences reports whether a point lies outside every active
// geofence in the list. It returns false when the list holds no active
// fences, since containment is only expected where a fence exists.
func OutsideActiveGeofences(lat, lon float64, fences []models.Geofence) bool {
	active := 0
	for i := range fences {
		if !fences[i].IsActive {
			continue
		}
		active++
		if InGeofence(lat, lon, &fences[i]) {
			return false
		}
	}
	return active > 0
}
