// Package mqttingest terminates the publish/subscribe half of the ingestion
// boundary. Vehicles publish to tenant/{tenant_id}/vehicles/{vehicle_id}/telemetry
// with broker-level credentials; payloads feed the same pipeline as the HTTP
// push endpoint.
package mqttingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/metrics"
	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/quantafons/bus-telemetry/internal/pipeline"
)

const processTimeout = 10 * time.Second

// Config holds broker connection settings.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string // subscription filter, e.g. tenant/+/vehicles/+/telemetry
	QoS       byte
}

// Ingress subscribes to the telemetry topic and pushes samples into the
// ingestion engine.
type Ingress struct {
	client   mqtt.Client
	engine   *pipeline.Engine
	vehicles db.VehicleCollection
	cfg      Config
}

// New creates an MQTT ingress. Connect is deferred to Start.
func New(cfg Config, engine *pipeline.Engine, vehicles db.VehicleCollection) *Ingress {
	if cfg.Topic == "" {
		cfg.Topic = "tenant/+/vehicles/+/telemetry"
	}
	in := &Ingress{engine: engine, vehicles: vehicles, cfg: cfg}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost, will auto-reconnect")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Subscribing here re-establishes the subscription after
			// every reconnect.
			token := c.Subscribe(in.cfg.Topic, in.cfg.QoS, in.handleMessage)
			token.Wait()
			if err := token.Error(); err != nil {
				log.WithError(err).Error("MQTT subscribe failed")
				return
			}
			log.WithFields(log.Fields{"topic": in.cfg.Topic}).Info("Subscribed to telemetry topic")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	in.client = mqtt.NewClient(opts)
	return in
}

// Start connects to the broker.
func (in *Ingress) Start() error {
	token := in.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	log.WithFields(log.Fields{"broker": in.cfg.BrokerURL}).Info("Connected to MQTT broker")
	return nil
}

// Close disconnects from the broker, allowing in-flight handlers to finish.
func (in *Ingress) Close() {
	in.client.Disconnect(250)
}

func (in *Ingress) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	tenantID, vehicleID, err := parseTopic(msg.Topic())
	if err != nil {
		log.WithFields(log.Fields{"topic": msg.Topic()}).WithError(err).Warn("Ignoring malformed telemetry topic")
		return
	}

	var raw models.RawSample
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		metrics.SamplesRejected.WithLabelValues("invalid").Inc()
		log.WithFields(log.Fields{"vehicle_id": vehicleID}).WithError(err).Warn("Ignoring malformed telemetry payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	// The broker credential authenticated the publisher; here the claimed
	// tenant still has to own the vehicle.
	vehicle, err := in.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil || vehicle.TenantID != tenantID {
		metrics.SamplesRejected.WithLabelValues("unauthenticated").Inc()
		log.WithFields(log.Fields{"vehicle_id": vehicleID, "tenant_id": tenantID}).
			Warn("Invalid vehicle for tenant on telemetry topic")
		return
	}

	if _, err := in.engine.Process(ctx, vehicle, &raw); err != nil {
		// At-most-once intake: a failed sample is logged and dropped, the
		// publisher is expected to keep streaming.
		log.WithFields(log.Fields{"vehicle_id": vehicleID}).
			WithError(err).Warn("Failed to process MQTT telemetry")
		return
	}
	log.WithFields(log.Fields{"vehicle_id": vehicleID}).Debug("Processed MQTT telemetry")
}

// parseTopic extracts tenant and vehicle ids from a telemetry topic of the
// form tenant/{tenant_id}/vehicles/{vehicle_id}/telemetry.
func parseTopic(topic string) (tenantID, vehicleID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "tenant" || parts[2] != "vehicles" || parts[4] != "telemetry" {
		return "", "", fmt.Errorf("unexpected topic format %q", topic)
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("empty tenant or vehicle id in topic %q", topic)
	}
	return parts[1], parts[3], nil
}
