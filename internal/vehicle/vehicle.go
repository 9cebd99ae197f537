package vehicle

import (
	"context"

	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

// PositionSetpoint is a target position in the local NED frame with yaw in degrees
type PositionSetpoint struct {
	North float64 // Target north in meters
	East  float64 // Target east in meters
	Down  float64 // Target down in meters (negative is up)
	Yaw   float64 // Heading in degrees
}

// VelocitySetpoint is a target velocity in the local NED frame with yaw in degrees
type VelocitySetpoint struct {
	North float64 // North velocity in m/s
	East  float64 // East velocity in m/s
	Down  float64 // Down velocity in m/s
	Yaw   float64 // Heading in degrees
}

// Actuator accepts offboard setpoints. Offboard mode must be active for
// setpoints to take effect.
type Actuator interface {
	SetPosition(ctx context.Context, sp PositionSetpoint) error
	SetVelocity(ctx context.Context, sp VelocitySetpoint) error
}

// Lifecycle drives the vehicle through the states that precede and follow
// offboard control.
type Lifecycle interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	Takeoff(ctx context.Context, altitude float64) error
	Land(ctx context.Context) error
	StartOffboard(ctx context.Context) error
	StopOffboard(ctx context.Context) error
}

// Vehicle is a connected vehicle exposing its position feed, the actuation
// sink and lifecycle commands.
type Vehicle interface {
	telemetry.Provider
	Actuator
	Lifecycle

	// Close releases the link to the vehicle
	Close() error
}
