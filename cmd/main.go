package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/api"
	"github.com/shiplink/fleet-coordination/internal/auth"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	log.SetFormatter(&log.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(log.DebugLevel)
	}

	mongoClient, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()

	collections := db.NewCollections(mongoClient.Database(db.DatabaseName()))

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}

	bus := events.NewBus()
	defer bus.Close()

	hub := ws.NewHub(bus)
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	if brokerURL := os.Getenv("MQTT_BROKER"); brokerURL != "" {
		bridge, err := events.NewMQTTBridge(brokerURL, "fleet-coordination-server")
		if err != nil {
			log.WithError(err).Warn("MQTT bridge disabled")
		} else {
			bridge.Run(bus)
			defer bridge.Close(bus)
			log.WithField("broker", brokerURL).Info("MQTT bridge connected")
		}
	}

	router := api.NewRouter(api.Deps{
		AuthService: authService,
		Collections: collections,
		Bus:         bus,
		Hub:         hub,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", port).Info("Fleet coordination server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
