package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/mavlink"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/sim"
)

// newVehicle is swapped in tests
var newVehicle = createVehicle

func createVehicle(ctx context.Context, config *VehicleConfig, clk clock.Clock, logger *slog.Logger) (vehicle.Vehicle, error) {
	switch config.Type {
	case VehicleSim:
		logger.Info("using simulated vehicle", slog.Float64("maxSpeed", config.Sim.MaxSpeed))
		return sim.New(config.Sim.Start,
			sim.WithLogger(logger),
			sim.WithClock(clk),
			sim.WithMaxSpeed(config.Sim.MaxSpeed),
			sim.WithFeedInterval(config.Sim.FeedInterval),
		), nil

	case VehicleMAVLink:
		link, err := mavlink.Dial(ctx, config.MAVLink, mavlink.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("connecting to vehicle: %w", err)
		}
		return link, nil

	default:
		return nil, fmt.Errorf("creating vehicle: unknown type '%s'", config.Type)
	}
}
