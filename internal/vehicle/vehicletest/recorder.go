// Package vehicletest provides a recording vehicle for tests.
package vehicletest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

// ErrFeedExhausted is returned by Next once ReadLimit samples have been consumed.
var ErrFeedExhausted = errors.New("vehicletest: feed exhausted")

// Recorder is an ideal vehicle: position setpoints are reached instantly and
// velocity setpoints are integrated over VelocityStep. Every call is recorded.
type Recorder struct {
	mu sync.Mutex

	Pos          ned.Position  // Current position reported by the feed
	VelocityStep time.Duration // Integration step for velocity setpoints; zero disables motion
	ReadLimit    int           // Fail reads after this many samples; zero means unlimited

	// Errors returned by lifecycle commands
	ArmErr, DisarmErr, TakeoffErr, LandErr, StartOffboardErr, StopOffboardErr error

	Reads      int
	Positions  []vehicle.PositionSetpoint
	Velocities []vehicle.VelocitySetpoint
	Calls      []string
}

var _ vehicle.Vehicle = (*Recorder)(nil)

// New creates a recorder positioned at pos.
func New(pos ned.Position) *Recorder {
	return &Recorder{Pos: pos}
}

func (r *Recorder) Next(ctx context.Context) (*telemetry.Telemetry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ReadLimit > 0 && r.Reads >= r.ReadLimit {
		return nil, ErrFeedExhausted
	}
	r.Reads++
	return &telemetry.Telemetry{Position: r.Pos}, nil
}

func (r *Recorder) SetPosition(_ context.Context, sp vehicle.PositionSetpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Positions = append(r.Positions, sp)
	r.Pos = ned.Position{North: sp.North, East: sp.East, Down: sp.Down}
	return nil
}

func (r *Recorder) SetVelocity(_ context.Context, sp vehicle.VelocitySetpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Velocities = append(r.Velocities, sp)
	dt := r.VelocityStep.Seconds()
	r.Pos.North += sp.North * dt
	r.Pos.East += sp.East * dt
	r.Pos.Down += sp.Down * dt
	return nil
}

func (r *Recorder) record(name string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, name)
	return err
}

func (r *Recorder) Arm(context.Context) error { return r.record("arm", r.ArmErr) }
func (r *Recorder) Disarm(context.Context) error { return r.record("disarm", r.DisarmErr) }
func (r *Recorder) Land(context.Context) error { return r.record("land", r.LandErr) }

func (r *Recorder) Takeoff(_ context.Context, altitude float64) error {
	if err := r.record("takeoff", r.TakeoffErr); err != nil {
		return err
	}

	r.mu.Lock()
	r.Pos.Down = -altitude
	r.mu.Unlock()
	return nil
}

func (r *Recorder) StartOffboard(context.Context) error {
	return r.record("start_offboard", r.StartOffboardErr)
}

func (r *Recorder) StopOffboard(context.Context) error {
	return r.record("stop_offboard", r.StopOffboardErr)
}

func (r *Recorder) Close() error { return r.record("close", nil) }

// Position returns the current position.
func (r *Recorder) Position() ned.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Pos
}
