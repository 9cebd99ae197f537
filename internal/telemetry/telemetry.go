package telemetry

import (
	"time"

	"github.com/roman-kulish/drone-navigator/internal/ned"
)

// Telemetry is a single position/velocity sample from the vehicle
type Telemetry struct {
	Timestamp time.Time    `json:"timestamp"`          // Timestamp of telemetry measurement
	Position  ned.Position `json:"position"`           // Local NED position in meters
	Velocity  *Velocity    `json:"velocity,omitempty"` // NED velocity in m/s, if reported
}

// Velocity is a NED velocity vector in m/s
type Velocity struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
	Down  float64 `json:"down"`
}
