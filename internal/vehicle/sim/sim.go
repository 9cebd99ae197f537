// Package sim implements a point-mass vehicle that follows offboard setpoints.
// State is integrated lazily against a clock whenever the vehicle is touched,
// so a manual clock gives fully deterministic flights.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

const (
	DefaultMaxSpeed     = 12.0 // m/s horizontal
	DefaultMaxClimbRate = 3.0  // m/s vertical
	DefaultFeedInterval = 50 * time.Millisecond
)

type mode int

const (
	modeHold mode = iota
	modePosition
	modeVelocity
)

// WithLogger sets the logger for the simulated vehicle
func WithLogger(logger *slog.Logger) func(*Vehicle) {
	return func(v *Vehicle) {
		v.logger = logger.With(slog.String("vehicle", "sim"))
	}
}

// WithClock sets the clock used for integration and feed pacing
func WithClock(c clock.Clock) func(*Vehicle) {
	return func(v *Vehicle) {
		v.clock = c
	}
}

// WithMaxSpeed limits horizontal speed in m/s
func WithMaxSpeed(speed float64) func(*Vehicle) {
	return func(v *Vehicle) {
		v.maxSpeed = speed
	}
}

// WithFeedInterval sets the period of the telemetry feed. Zero produces
// samples immediately.
func WithFeedInterval(d time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.feedInterval = d
	}
}

// Vehicle is a simulated multicopter
type Vehicle struct {
	mu sync.Mutex

	clock        clock.Clock
	logger       *slog.Logger
	maxSpeed     float64
	maxClimbRate float64
	feedInterval time.Duration

	pos        ned.Position
	vel        telemetry.Velocity
	target     ned.Position
	mode       mode
	lastUpdate time.Time
	nextSample time.Time

	armed            bool
	offboard         bool
	setpointPrimed   bool
	ignoredSetpoints int
}

var _ vehicle.Vehicle = (*Vehicle)(nil)

// New creates a simulated vehicle resting at start
func New(start ned.Position, options ...func(*Vehicle)) *Vehicle {
	v := Vehicle{
		clock:        clock.Real{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSpeed:     DefaultMaxSpeed,
		maxClimbRate: DefaultMaxClimbRate,
		feedInterval: DefaultFeedInterval,
		pos:          start,
		target:       start,
	}

	for _, option := range options {
		option(&v)
	}

	v.lastUpdate = v.clock.Now()
	v.nextSample = v.lastUpdate.Add(v.feedInterval)
	return &v
}

// Next returns the integrated state at the next feed period. Samples are
// produced on a fixed schedule: a caller that comes back late gets the
// current state at once and missed periods are skipped.
func (v *Vehicle) Next(ctx context.Context) (*telemetry.Telemetry, error) {
	v.mu.Lock()
	wait := v.nextSample.Sub(v.clock.Now())
	v.mu.Unlock()

	if wait > 0 {
		if err := v.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.integrate()
	v.scheduleNext(now)
	vel := v.vel
	return &telemetry.Telemetry{
		Timestamp: now,
		Position:  v.pos,
		Velocity:  &vel,
	}, nil
}

func (v *Vehicle) SetPosition(_ context.Context, sp vehicle.PositionSetpoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	v.setpointPrimed = true
	if !v.offboard {
		v.ignoredSetpoints++
		return nil
	}

	v.mode = modePosition
	v.target = ned.Position{North: sp.North, East: sp.East, Down: sp.Down}
	return nil
}

func (v *Vehicle) SetVelocity(_ context.Context, sp vehicle.VelocitySetpoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	v.setpointPrimed = true
	if !v.offboard {
		v.ignoredSetpoints++
		return nil
	}

	v.mode = modeVelocity
	v.vel = v.clampVelocity(telemetry.Velocity{North: sp.North, East: sp.East, Down: sp.Down})
	return nil
}

func (v *Vehicle) Arm(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	v.armed = true
	v.logger.Debug("armed")
	return nil
}

func (v *Vehicle) Disarm(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	if v.pos.Down < -0.1 && v.offboard {
		return fmt.Errorf("%w: disarm while airborne in offboard", vehicle.ErrCommandRejected)
	}
	v.armed = false
	v.offboard = false
	v.mode = modeHold
	v.vel = telemetry.Velocity{}
	v.logger.Debug("disarmed")
	return nil
}

func (v *Vehicle) Takeoff(_ context.Context, altitude float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	if !v.armed {
		return fmt.Errorf("%w: takeoff while disarmed", vehicle.ErrCommandRejected)
	}
	v.mode = modePosition
	v.target = ned.Position{North: v.pos.North, East: v.pos.East, Down: -altitude}
	v.logger.Debug("taking off", slog.Float64("altitude", altitude))
	return nil
}

func (v *Vehicle) Land(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	v.offboard = false
	v.mode = modePosition
	v.target = ned.Position{North: v.pos.North, East: v.pos.East, Down: 0}
	v.logger.Debug("landing")
	return nil
}

func (v *Vehicle) StartOffboard(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	if !v.armed {
		return fmt.Errorf("%w: vehicle is disarmed", vehicle.ErrOffboardRejected)
	}
	if !v.setpointPrimed {
		return fmt.Errorf("%w: no setpoint received before start", vehicle.ErrOffboardRejected)
	}
	v.offboard = true
	v.logger.Debug("offboard started", slog.Int("ignoredSetpoints", v.ignoredSetpoints))
	return nil
}

func (v *Vehicle) StopOffboard(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	v.offboard = false
	v.mode = modePosition
	v.target = v.pos
	return nil
}

func (v *Vehicle) Close() error {
	return nil
}

// Position returns the current simulated position
func (v *Vehicle) Position() ned.Position {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.integrate()
	return v.pos
}

// scheduleNext moves the feed to the first period after now. Callers hold mu.
func (v *Vehicle) scheduleNext(now time.Time) {
	if v.feedInterval <= 0 {
		v.nextSample = now
		return
	}

	v.nextSample = v.nextSample.Add(v.feedInterval)
	if !v.nextSample.After(now) {
		missed := now.Sub(v.nextSample)/v.feedInterval + 1
		v.nextSample = v.nextSample.Add(missed * v.feedInterval)
	}
}

// integrate advances the state to the current clock time. Callers hold mu.
func (v *Vehicle) integrate() time.Time {
	now := v.clock.Now()
	dt := now.Sub(v.lastUpdate).Seconds()
	v.lastUpdate = now
	if dt <= 0 {
		return now
	}

	switch v.mode {
	case modeVelocity:
		v.pos.North += v.vel.North * dt
		v.pos.East += v.vel.East * dt
		v.pos.Down += v.vel.Down * dt

	case modePosition:
		v.vel = v.stepTowards(dt)

	default:
		v.vel = telemetry.Velocity{}
	}

	if v.pos.Down > 0 {
		v.pos.Down = 0 // ground
	}
	return now
}

func (v *Vehicle) stepTowards(dt float64) telemetry.Velocity {
	from := v.pos.Horizontal()
	delta := v.target.Horizontal().Sub(from)

	var step r2.Point
	if dist := delta.Norm(); dist > 0 {
		step = delta.Mul(math.Min(dist, v.maxSpeed*dt) / dist)
	}

	dDown := v.target.Down - v.pos.Down
	climb := math.Copysign(math.Min(math.Abs(dDown), v.maxClimbRate*dt), dDown)

	v.pos = ned.FromHorizontal(from.Add(step), v.pos.Down+climb)
	return telemetry.Velocity{North: step.X / dt, East: step.Y / dt, Down: climb / dt}
}

func (v *Vehicle) clampVelocity(vel telemetry.Velocity) telemetry.Velocity {
	h := r2.Point{X: vel.North, Y: vel.East}
	if speed := h.Norm(); speed > v.maxSpeed {
		h = h.Mul(v.maxSpeed / speed)
	}
	vel.North, vel.East = h.X, h.Y
	vel.Down = math.Max(-v.maxClimbRate, math.Min(v.maxClimbRate, vel.Down))
	return vel
}
