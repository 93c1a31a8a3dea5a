package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quantafons/bus-telemetry/internal/auth"
	"github.com/quantafons/bus-telemetry/internal/config"
	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/handlers"
	"github.com/quantafons/bus-telemetry/internal/middleware"
	"github.com/quantafons/bus-telemetry/internal/mqttingest"
	"github.com/quantafons/bus-telemetry/internal/pipeline"
	"github.com/quantafons/bus-telemetry/internal/realtime"
	"github.com/quantafons/bus-telemetry/internal/scheduler"
)

func main() {
	cfg := config.Load()

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.Info("Connected to MongoDB successfully")

	database := client.Database(cfg.MongoDatabase)
	if err := db.EnsureIndexes(context.Background(), database); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}
	store := db.NewStore(database)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}
	vehicleAuth := auth.NewVehicleAuthenticator(store.Vehicles, cfg.VehicleAuthCacheTTL)

	hub := realtime.NewHub()
	engine := pipeline.NewEngine(store, hub, pipeline.Options{
		Lanes:            cfg.Lanes,
		LaneBuffer:       cfg.LaneBuffer,
		GeofenceAlerts:   cfg.GeofenceAlerts,
		GeofenceSeverity: cfg.GeofenceSeverity,
	})

	router := buildRouter(engine, vehicleAuth, store, authService, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	var ingress *mqttingest.Ingress
	if cfg.MQTTBrokerURL != "" {
		ingress = mqttingest.New(mqttingest.Config{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Topic:     cfg.MQTTTopic,
			QoS:       1,
		}, engine, store.Vehicles)
		if err := ingress.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start MQTT ingress")
		}
	}

	sched := &scheduler.Scheduler{}
	sched.Every(ctx, cfg.OfflineCheckInterval, scheduler.Job{
		Name: "check_bus_offline",
		Run:  (&scheduler.OfflineMonitor{Vehicles: store.Vehicles, Alerts: store.Alerts}).Run,
	})
	sched.Every(ctx, cfg.ReaperInterval, scheduler.Job{
		Name: "cleanup_old_telemetry",
		Run:  (&scheduler.Reaper{Telemetry: store.Telemetry}).Run,
	})
	sched.Daily(ctx, scheduler.Job{
		Name: "daily_fuel_report",
		Run: (&scheduler.DailySummary{
			Vehicles:   store.Vehicles,
			Telemetry:  store.Telemetry,
			FuelEvents: store.FuelEvents,
		}).Run,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithFields(log.Fields{"port": cfg.HTTPPort}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		// Shutdown order: stop intake first so in-flight samples drain with
		// no partial writes, then the jobs and servers.
		if ingress != nil {
			ingress.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown")
		}
		engine.Close()
		sched.Wait()
		hub.Close()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Fatal("Service failed")
	}
	log.Info("Shutdown complete")
}

func buildRouter(
	engine *pipeline.Engine,
	vehicleAuth *auth.VehicleAuthenticator,
	store *db.Store,
	authService *auth.Service,
	hub *realtime.Hub,
) *mux.Router {
	telemetryHandler := handlers.NewTelemetryHandler(engine, vehicleAuth, store.Vehicles)
	queryHandler := handlers.NewQueryHandler(store)
	wsHandler := realtime.NewWSHandler(hub, store.Vehicles)
	authMW := middleware.NewAuthMiddleware(authService)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())

	// Ingestion boundary: per-vehicle credential, no user JWT.
	router.HandleFunc("/api/transport/telemetry/{id}", telemetryHandler.Receive).Methods(http.MethodPost)

	api := router.PathPrefix("/api/transport").Subrouter()
	api.Use(authMW.Authenticate)
	api.HandleFunc("/buses", telemetryHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/buses/{id}/latest", queryHandler.LatestSample).Methods(http.MethodGet)
	api.HandleFunc("/fuel-analytics/{id}", queryHandler.FuelAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/alerts", queryHandler.Alerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/acknowledge", queryHandler.AcknowledgeAlert).Methods(http.MethodPost)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(authMW.Authenticate)
	ws.HandleFunc("/telemetry", wsHandler.ServeTenant).Methods(http.MethodGet)
	ws.HandleFunc("/vehicles/{id}/track", wsHandler.ServeVehicle).Methods(http.MethodGet)

	return router
}
