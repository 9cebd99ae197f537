package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

const (
	// ArrivalTolerance is the planar distance under which Goto does nothing
	ArrivalTolerance = 0.01

	// MinSpeed guards the step computation against zero or negative speeds
	MinSpeed = 0.01

	DefaultDown         = -3.0
	DefaultTickInterval = 50 * time.Millisecond
)

// Delays are the settle times the controller waits after lifecycle commands
type Delays struct {
	Arm            time.Duration `yaml:"arm"`
	Disarm         time.Duration `yaml:"disarm"`
	TakeoffPrepare time.Duration `yaml:"takeoffPrepare"`
	TakeoffClimb   time.Duration `yaml:"takeoffClimb"`
	Land           time.Duration `yaml:"land"`
	Offboard       time.Duration `yaml:"offboard"`
}

// DefaultDelays returns settle times suitable for PX4 SITL
func DefaultDelays() Delays {
	return Delays{
		Arm:            time.Second,
		Disarm:         time.Second,
		TakeoffPrepare: 500 * time.Millisecond,
		TakeoffClimb:   5 * time.Second,
		Land:           10 * time.Second,
		Offboard:       100 * time.Millisecond,
	}
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "control"))
	}
}

// WithClock sets the clock used to pace setpoints and settle delays
func WithClock(clk clock.Clock) func(*Controller) {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(m *metrics.Collector) func(*Controller) {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithDelays overrides the lifecycle settle delays
func WithDelays(d Delays) func(*Controller) {
	return func(c *Controller) {
		c.delays = d
	}
}

// WithDefaultDown sets the down coordinate used when a command omits one
func WithDefaultDown(down float64) func(*Controller) {
	return func(c *Controller) {
		c.defaultDown = down
	}
}

// Controller drives a connected vehicle: lifecycle commands and straight-line
// position transits
type Controller struct {
	vehicle     vehicle.Vehicle
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *metrics.Collector
	delays      Delays
	defaultDown float64

	offboardStarted bool
}

// NewController creates a controller for v with a discard logger
func NewController(v vehicle.Vehicle, options ...func(*Controller)) *Controller {
	c := Controller{
		vehicle:     v,
		clock:       clock.Real{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		delays:      DefaultDelays(),
		defaultDown: DefaultDown,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Vehicle returns the controlled vehicle
func (c *Controller) Vehicle() vehicle.Vehicle {
	return c.vehicle
}

// Clock returns the clock pacing this controller
func (c *Controller) Clock() clock.Clock {
	return c.clock
}

// DefaultDown returns the down coordinate used when none is given
func (c *Controller) DefaultDown() float64 {
	return c.defaultDown
}

func (c *Controller) Arm(ctx context.Context) error {
	c.logger.Info("arming...")
	if err := c.vehicle.Arm(ctx); err != nil {
		return fmt.Errorf("arming: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.delays.Arm); err != nil {
		return err
	}
	c.logger.Info("armed")
	return nil
}

func (c *Controller) Disarm(ctx context.Context) error {
	c.logger.Info("disarming...")
	if err := c.vehicle.Disarm(ctx); err != nil {
		return fmt.Errorf("disarming: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.delays.Disarm); err != nil {
		return err
	}
	c.logger.Info("disarmed")
	return nil
}

// Takeoff climbs to altitude meters above the origin and waits for the climb
func (c *Controller) Takeoff(ctx context.Context, altitude float64) error {
	c.logger.Info("taking off", slog.Float64("altitude", altitude))
	if err := c.clock.Sleep(ctx, c.delays.TakeoffPrepare); err != nil {
		return err
	}
	if err := c.vehicle.Takeoff(ctx, altitude); err != nil {
		return fmt.Errorf("taking off: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.delays.TakeoffClimb); err != nil {
		return err
	}
	c.logger.Info("takeoff done")
	return nil
}

func (c *Controller) Land(ctx context.Context) error {
	c.logger.Info("landing...")
	if err := c.vehicle.Land(ctx); err != nil {
		return fmt.Errorf("landing: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.delays.Land); err != nil {
		return err
	}
	c.logger.Info("landed")
	return nil
}

// StartOffboard primes the vehicle with a position setpoint at (0, 0, down)
// and switches to offboard mode. If the vehicle rejects the mode switch it is
// disarmed before the error is returned.
func (c *Controller) StartOffboard(ctx context.Context, down float64) error {
	c.logger.Info("starting offboard", slog.Float64("down", down))
	return c.startOffboard(ctx, func() error {
		return c.SetPosition(ctx, ned.Position{Down: down}, 0)
	})
}

// StartOffboardVelocity is like StartOffboard but primes with a zero velocity
// setpoint, for maneuvers flown in velocity control.
func (c *Controller) StartOffboardVelocity(ctx context.Context) error {
	c.logger.Info("starting offboard (velocity)")
	return c.startOffboard(ctx, func() error {
		return c.SetVelocity(ctx, vehicle.VelocitySetpoint{})
	})
}

func (c *Controller) startOffboard(ctx context.Context, prime func() error) error {
	if err := prime(); err != nil {
		return fmt.Errorf("sending initial setpoint: %w", err)
	}

	if err := c.vehicle.StartOffboard(ctx); err != nil {
		c.logger.Error(fmt.Sprintf("failed to start offboard: %s; disarming", err.Error()))

		err = fmt.Errorf("starting offboard: %w", err)
		if dErr := c.vehicle.Disarm(ctx); dErr != nil {
			return errors.Join(err, fmt.Errorf("safety disarm: %w", dErr))
		}
		return err
	}

	c.offboardStarted = true
	if err := c.clock.Sleep(ctx, c.delays.Offboard); err != nil {
		return err
	}
	c.logger.Info("offboard started")
	return nil
}

// StopOffboard leaves offboard mode. It is a no-op when offboard was never
// started; failures are logged, not returned.
func (c *Controller) StopOffboard(ctx context.Context) error {
	if !c.offboardStarted {
		return nil
	}

	c.logger.Info("stopping offboard")
	if err := c.vehicle.StopOffboard(ctx); err != nil {
		c.logger.Warn(fmt.Sprintf("stopping offboard: %s", err.Error()))
	}
	c.offboardStarted = false

	return c.clock.Sleep(ctx, c.delays.Offboard)
}

// SetPosition sends a single position setpoint
func (c *Controller) SetPosition(ctx context.Context, p ned.Position, yaw float64) error {
	if err := c.vehicle.SetPosition(ctx, vehicle.PositionSetpoint{North: p.North, East: p.East, Down: p.Down, Yaw: yaw}); err != nil {
		return fmt.Errorf("sending position setpoint: %w", err)
	}
	c.metrics.SetpointSent(metrics.SetpointPosition)
	return nil
}

// SetVelocity sends a single velocity setpoint
func (c *Controller) SetVelocity(ctx context.Context, sp vehicle.VelocitySetpoint) error {
	if err := c.vehicle.SetVelocity(ctx, sp); err != nil {
		return fmt.Errorf("sending velocity setpoint: %w", err)
	}
	c.metrics.SetpointSent(metrics.SetpointVelocity)
	return nil
}

// GotoSteps returns the number of setpoints a transit of distance meters at
// speed m/s is split into when one setpoint is sent per tick.
func GotoSteps(distance, speed float64, tick time.Duration) int {
	dt := tick.Seconds()
	timeNeeded := math.Max(distance/math.Max(speed, MinSpeed), dt)

	// the tolerance absorbs representation error, e.g. 5s / 0.05s
	steps := int(math.Ceil(timeNeeded/dt - 1e-9))
	return max(steps, 1)
}

// Goto moves the vehicle to target along a straight line by streaming
// linearly interpolated position setpoints, one per tick, at target.Down.
// It reads a single position sample to find the starting point. When the
// vehicle is already within ArrivalTolerance of the target nothing is sent.
// The last setpoint is exactly the target.
func (c *Controller) Goto(ctx context.Context, target ned.Position, speed float64, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	start, err := telemetry.ReadPosition(ctx, c.vehicle)
	if err != nil {
		return fmt.Errorf("goto: %w", err)
	}

	from := start.Horizontal()
	delta := target.Horizontal().Sub(from)
	dist := delta.Norm()
	if dist < ArrivalTolerance {
		c.logger.Debug("already at target", slog.String("distance", humanize.FtoaWithDigits(dist, 3)+"m"))
		return nil
	}

	steps := GotoSteps(dist, speed, tick)
	began := c.clock.Now()

	c.logger.Info("goto",
		slog.String("target", fmt.Sprintf("(%.2f, %.2f)", target.North, target.East)),
		slog.String("distance", humanize.FtoaWithDigits(dist, 2)+"m"),
		slog.Int("steps", steps))

	for i := 1; i <= steps; i++ {
		sp := target
		if i < steps {
			alpha := float64(i) / float64(steps)
			sp = ned.FromHorizontal(from.Add(delta.Mul(alpha)), target.Down)
		}

		if err = c.SetPosition(ctx, sp, 0); err != nil {
			return fmt.Errorf("goto step %d/%d: %w", i, steps, err)
		}
		if err = c.clock.Sleep(ctx, tick); err != nil {
			return err
		}
	}

	c.metrics.ObserveGoto(c.clock.Now().Sub(began))
	c.logger.Debug("goto done")
	return nil
}
