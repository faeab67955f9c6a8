package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/client"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
)

// Exercises a full trip lifecycle against a running server: register the
// parties, onboard a driver and a vehicle, request a trip, assign it, drive
// it to completion with milestones, and chat along the way.
func main() {
	baseURL := os.Getenv("SERVER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	run := uuid.NewString()[:8]

	admin := client.New(baseURL)
	if _, err := admin.Register(ctx, models.RegisterRequest{
		Email:    fmt.Sprintf("admin-%s@sim.local", run),
		Password: "password123",
		FullName: "Sim Admin",
		Phone:    "+91 90000 00001",
		Role:     models.RoleAdmin,
	}); err != nil {
		log.WithError(err).Fatal("Admin registration failed")
	}

	shipper := client.New(baseURL)
	if _, err := shipper.Register(ctx, models.RegisterRequest{
		Email:    fmt.Sprintf("client-%s@sim.local", run),
		Password: "password123",
		FullName: "Sim Shipper",
		Phone:    "+91 90000 00002",
		Role:     models.RoleClient,
	}); err != nil {
		log.WithError(err).Fatal("Client registration failed")
	}

	// The admin watches the change feed while the simulation runs.
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() {
		err := admin.ListenChanges(feedCtx,
			events.TableTrips, events.TableVehicles, events.TableMilestones, events.TableMessages)
		if err != nil {
			log.WithError(err).Warn("Change feed closed")
		}
	}()
	time.Sleep(200 * time.Millisecond)

	driverEmail := fmt.Sprintf("driver-%s@sim.local", run)
	driverProfile, err := admin.CreateDriver(ctx, models.CreateDriverRequest{
		FullName: "Sim Driver",
		Phone:    "+91 90000 00003",
		Email:    driverEmail,
	})
	if err != nil {
		log.WithError(err).Fatal("Driver onboarding failed")
	}
	log.WithField("driver_id", driverProfile.ID.Hex()).Info("Driver onboarded")

	vehicle, err := admin.CreateVehicle(ctx, map[string]interface{}{
		"registration_number": "MH12-" + run,
		"vehicle_type":        "truck",
		"capacity_kg":         9000,
	})
	if err != nil {
		log.WithError(err).Fatal("Vehicle registration failed")
	}
	log.WithField("vehicle_id", vehicle.ID.Hex()).Info("Vehicle registered")

	trip, err := shipper.CreateTrip(ctx, models.CreateTripRequest{
		PickupLocation: "Mumbai",
		DropLocation:   "Pune",
		BilledAmount:   18500,
		Notes:          "Fragile load, tarpaulin required",
	})
	if err != nil {
		log.WithError(err).Fatal("Trip request failed")
	}
	log.WithField("trip_id", trip.ID.Hex()).Info("Trip requested")

	pending, err := admin.PendingTrips(ctx)
	if err != nil {
		log.WithError(err).Fatal("Listing pending trips failed")
	}
	log.WithField("count", len(pending)).Info("Pending queue")

	if err := admin.AssignTrip(ctx, trip.ID.Hex(), driverProfile.ID.Hex(), vehicle.ID.Hex()); err != nil {
		log.WithError(err).Fatal("Assignment failed")
	}
	log.Info("Trip assigned")

	driver := client.New(baseURL)
	if _, err := driver.Login(ctx, driverEmail, "test1234"); err != nil {
		log.WithError(err).Fatal("Driver login failed")
	}

	current, err := driver.CurrentTrip(ctx)
	if err != nil {
		log.WithError(err).Fatal("Loading current trip failed")
	}
	if current == nil {
		log.Fatal("Driver has no current trip after assignment")
	}

	if err := driver.ArrivePickup(ctx, current.ID.Hex(), "Warehouse 4, Mumbai"); err != nil {
		log.WithError(err).Fatal("Pickup failed")
	}
	log.Info("Picked up, trip active")

	fuelCost := 4200.0
	liters := 48.0
	if _, err := driver.RecordMilestone(ctx, current.ID.Hex(), models.RecordMilestoneRequest{
		Type:         models.MilestoneFuel,
		LocationName: "HP pump, Lonavala",
		Metadata:     models.MilestoneMetadata{FuelCost: &fuelCost, Liters: &liters},
	}); err != nil {
		log.WithError(err).Fatal("Fuel milestone failed")
	}

	toll := 320.0
	if _, err := driver.RecordMilestone(ctx, current.ID.Hex(), models.RecordMilestoneRequest{
		Type:         models.MilestoneToll,
		LocationName: "Khalapur toll plaza",
		Metadata:     models.MilestoneMetadata{TollAmount: &toll},
	}); err != nil {
		log.WithError(err).Fatal("Toll milestone failed")
	}

	if _, err := shipper.SendMessage(ctx, trip.ID.Hex(), "Any ETA for the delivery?"); err != nil {
		log.WithError(err).Fatal("Client message failed")
	}
	if _, err := admin.SendMessage(ctx, trip.ID.Hex(), "Driver crossed Lonavala, on schedule."); err != nil {
		log.WithError(err).Fatal("Admin message failed")
	}

	if err := driver.CompleteDelivery(ctx, current.ID.Hex(), "Pune depot"); err != nil {
		log.WithError(err).Fatal("Delivery failed")
	}
	log.Info("Delivered")

	milestones, err := shipper.Milestones(ctx, trip.ID.Hex())
	if err != nil {
		log.WithError(err).Fatal("Listing milestones failed")
	}
	for _, m := range milestones {
		log.WithFields(log.Fields{
			"type":     m.Type,
			"location": m.LocationName,
		}).Info("Milestone")
	}

	// Park the vehicle for maintenance via the optimistic toggle.
	if err := admin.SetVehicleAvailability(ctx, vehicle.ID.Hex(), false); err != nil {
		log.WithError(err).Fatal("Availability toggle failed")
	}
	log.Info("Vehicle parked for maintenance")

	log.Info("Simulation complete")
}
