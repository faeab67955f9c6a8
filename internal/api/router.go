package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shiplink/fleet-coordination/internal/auth"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/handlers"
	"github.com/shiplink/fleet-coordination/internal/middleware"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/shiplink/fleet-coordination/internal/ws"
)

// Deps bundles everything the router wires together.
type Deps struct {
	AuthService *auth.Service
	Collections *db.Collections
	Bus         *events.Bus
	Hub         *ws.Hub
}

// NewRouter builds the HTTP surface: public auth endpoints, then role-scoped
// subtrees for clients, drivers and admins, plus the shared trip resources
// (milestones, messages, websocket).
func NewRouter(deps Deps) http.Handler {
	authMW := middleware.NewAuthMiddleware(deps.AuthService)
	rateLimiter := middleware.NewRateLimitMiddleware()

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Collections.Profiles)
	tripHandler := handlers.NewTripHandler(deps.Collections.Trips, deps.Collections.Profiles, deps.Collections.Vehicles, deps.Bus)
	milestoneHandler := handlers.NewMilestoneHandler(deps.Collections.Trips, deps.Collections.Milestones, deps.Bus)
	messageHandler := handlers.NewMessageHandler(deps.Collections.Trips, deps.Collections.Messages, deps.Collections.Profiles, deps.Bus)
	vehicleHandler := handlers.NewVehicleHandler(deps.Collections.Vehicles, deps.Collections.Trips, deps.Bus)
	driverHandler := handlers.NewDriverHandler(deps.AuthService, deps.Collections.Profiles, deps.Bus)
	wsHandler := ws.NewHandler(deps.Hub)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(rateLimiter.RateLimit(20, 60))
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.Authenticate)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", authHandler.GetProfile)
				r.Put("/", authHandler.UpdateProfile)
				r.Post("/password", authHandler.ChangePassword)
			})

			r.Get("/ws", wsHandler.ServeHTTP)

			r.Route("/trips/{id}", func(r chi.Router) {
				r.Get("/", tripHandler.GetTrip)
				r.Get("/milestones", milestoneHandler.ListMilestones)
				r.Get("/messages", messageHandler.ListMessages)
				r.With(authMW.RequirePermission("send_message")).Post("/messages", messageHandler.SendMessage)
			})

			r.Route("/client", func(r chi.Router) {
				r.Use(authMW.RequireRole(models.RoleClient))
				r.Get("/trips", tripHandler.ListClientTrips)
				r.Post("/trips", tripHandler.CreateTrip)
			})

			r.Route("/driver", func(r chi.Router) {
				r.Use(authMW.RequireRole(models.RoleDriver))
				r.Get("/trip", tripHandler.GetDriverTrip)
				r.Post("/trips/{id}/milestones", milestoneHandler.RecordMilestone)
				r.Post("/trips/{id}/arrive-pickup", milestoneHandler.ArrivePickup)
				r.Post("/trips/{id}/complete", milestoneHandler.CompleteDelivery)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(authMW.RequireRole(models.RoleAdmin))

				r.Get("/trips/pending", tripHandler.ListPendingTrips)
				r.Get("/trips/active", tripHandler.ListActiveTrips)
				r.Post("/trips/{id}/assign", tripHandler.AssignTrip)
				r.Put("/trips/{id}", tripHandler.UpdateTrip)
				r.Delete("/trips/{id}", tripHandler.DeleteTrip)

				r.Get("/vehicles", vehicleHandler.ListVehicles)
				r.Post("/vehicles", vehicleHandler.CreateVehicle)
				r.Get("/vehicles/available", vehicleHandler.ListAvailableVehicles)
				r.Get("/vehicles/busy", vehicleHandler.ListBusyVehicles)
				r.Get("/vehicles/{id}", vehicleHandler.GetVehicle)
				r.Put("/vehicles/{id}", vehicleHandler.UpdateVehicle)
				r.Patch("/vehicles/{id}/availability", vehicleHandler.SetAvailability)
				r.Delete("/vehicles/{id}", vehicleHandler.DeleteVehicle)

				r.Get("/drivers", driverHandler.ListDrivers)
				r.Post("/drivers", driverHandler.CreateDriver)
				r.Get("/drivers/active", driverHandler.ListActiveDrivers)
				r.Patch("/drivers/{id}", driverHandler.UpdateDriver)
			})
		})
	})

	return r
}

func corsOrigins() []string {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
