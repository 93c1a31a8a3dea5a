// Simulator drives a fleet of fake buses against the telemetry push
// endpoint: it registers buses, then streams position/fuel/speed samples
// with the per-vehicle credential, including occasional refuels and sudden
// drops so the anomaly pipeline has something to classify.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

type location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type registerRequest struct {
	Name           string  `json:"name"`
	RegistrationNo string  `json:"registration_no"`
	Capacity       int     `json:"capacity"`
	TankCapacity   float64 `json:"fuel_tank_capacity"`
}

type registerResponse struct {
	VehicleID string `json:"vehicle_id"`
	Token     string `json:"token"`
}

type sample struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedKmh  float64   `json:"speed_kmh"`
	FuelLevel float64   `json:"fuel_level_liters"`
	Odometer  float64   `json:"odometer_km"`
	EngineOn  bool      `json:"engine_on"`
	Heading   float64   `json:"heading"`
}

// School districts to scatter buses around.
var cities = []location{
	{Lat: 51.5074, Lon: -0.1278},  // London
	{Lat: 40.7128, Lon: -74.0060}, // New York
	{Lat: 40.4168, Lon: -3.7038},  // Madrid
	{Lat: 35.1856, Lon: 33.3823},  // Nicosia
	{Lat: 48.8566, Lon: 2.3522},   // Paris
	{Lat: 41.0082, Lon: 28.9784},  // Istanbul
	{Lat: 19.0760, Lon: 72.8777},  // Mumbai
	{Lat: -26.2041, Lon: 28.0473}, // Johannesburg
}

type busState struct {
	id       string
	token    string
	position location
	heading  float64
	speedKmh float64
	fuelL    float64
	tankL    float64
	odometer float64
	engineOn bool
	idleLeft int
}

func jitterLocation(base location, meters float64) location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func registerBus(apiURL, adminToken string, n int) (*busState, error) {
	req := registerRequest{
		Name:           fmt.Sprintf("Bus %02d", n),
		RegistrationNo: fmt.Sprintf("SIM-%04d", rand.Intn(10000)),
		Capacity:       50,
		TankCapacity:   100,
	}
	data, _ := json.Marshal(req)

	httpReq, err := http.NewRequest(http.MethodPost, apiURL+"/api/transport/buses", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+adminToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("bus registration failed with status: %d", resp.StatusCode)
	}

	var reg registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	base := cities[rand.Intn(len(cities))]
	bus := &busState{
		id:       reg.VehicleID,
		token:    reg.Token,
		position: jitterLocation(base, 500),
		heading:  rand.Float64() * 360,
		fuelL:    60 + rand.Float64()*40,
		tankL:    100,
		odometer: 10000 + rand.Float64()*50000,
		engineOn: true,
	}
	log.WithFields(log.Fields{"vehicle_id": bus.id, "name": req.Name}).Info("Registered bus")
	return bus, nil
}

// step advances the bus one tick: mostly driving, sometimes idling, with a
// rare refuel or an abrupt fuel drop to exercise the theft rule.
func (b *busState) step(tickSec float64) {
	switch {
	case b.idleLeft > 0:
		b.idleLeft--
		b.speedKmh = 0
		b.fuelL -= 0.02 // idle burn
	case rand.Float64() < 0.05:
		b.idleLeft = 5 + rand.Intn(10)
		b.speedKmh = 0
	default:
		b.speedKmh = 20 + rand.Float64()*60
		if rand.Float64() < 0.02 {
			b.speedKmh = 85 + rand.Float64()*20 // trip the speed rule
		}
		distKm := b.speedKmh * tickSec / 3600
		b.odometer += distKm
		b.fuelL -= distKm / 4 // ~4 km/L loaded bus
		b.heading += (rand.Float64() - 0.5) * 30
		b.position = jitterLocation(b.position, b.speedKmh*tickSec/3.6)
	}

	if b.fuelL < 15 && rand.Float64() < 0.3 {
		b.fuelL = b.tankL * (0.8 + rand.Float64()*0.2) // refuel event
	}
	if rand.Float64() < 0.002 {
		b.engineOn = false
		b.speedKmh = 0
		b.fuelL -= 8 // siphon, trips the theft rule
	} else {
		b.engineOn = true
	}
	if b.fuelL < 0 {
		b.fuelL = 0
	}
}

func (b *busState) send(apiURL string) error {
	s := sample{
		Timestamp: time.Now().UTC(),
		Latitude:  b.position.Lat,
		Longitude: b.position.Lon,
		SpeedKmh:  b.speedKmh,
		FuelLevel: b.fuelL,
		Odometer:  b.odometer,
		EngineOn:  b.engineOn,
		Heading:   math.Mod(b.heading+360, 360),
	}
	data, _ := json.Marshal(s)

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/transport/telemetry/%s", apiURL, b.id), bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", b.token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telemetry rejected with status: %d", resp.StatusCode)
	}
	return nil
}

func main() {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		log.Fatal("ADMIN_TOKEN is required to register simulated buses")
	}
	busCount := 5
	if v := os.Getenv("BUS_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			busCount = n
		}
	}
	tick := 10 * time.Second
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			tick = d
		}
	}

	var buses []*busState
	for i := 1; i <= busCount; i++ {
		bus, err := registerBus(apiURL, adminToken, i)
		if err != nil {
			log.WithError(err).Fatal("Failed to register bus")
		}
		buses = append(buses, bus)
	}

	log.WithFields(log.Fields{"buses": len(buses), "tick": tick}).Info("Simulation started")
	for range time.Tick(tick) {
		for _, bus := range buses {
			bus.step(tick.Seconds())
			if err := bus.send(apiURL); err != nil {
				log.WithFields(log.Fields{"vehicle_id": bus.id}).WithError(err).Warn("Failed to send telemetry")
			}
		}
	}
}
