package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/geo/r2"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

// Phase is a stage of the approach and orbit maneuver.
type Phase int

const (
	PhaseApproach Phase = iota
	PhaseStabilize
	PhaseEntry
	PhaseOrbit
)

func (p Phase) String() string {
	switch p {
	case PhaseApproach:
		return "approach"
	case PhaseStabilize:
		return "stabilize"
	case PhaseEntry:
		return "entry"
	case PhaseOrbit:
		return "orbit"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// OrbitConfig describes the orbit and the gains of the controller flying it.
// Altitude is positive up; the orbit is flown at down = -Altitude.
type OrbitConfig struct {
	CenterNorth  float64 `yaml:"centerNorth"`
	CenterEast   float64 `yaml:"centerEast"`
	Radius       float64 `yaml:"radius"`
	Altitude     float64 `yaml:"altitude"`
	NumOrbits    int     `yaml:"numOrbits"`
	AngularSpeed float64 `yaml:"angularSpeed"` // rad/s

	LoopRate         float64       `yaml:"loopRate"` // Hz
	ApproachGain     float64       `yaml:"approachGain"`
	EntryGain        float64       `yaml:"entryGain"`
	OrbitGain        float64       `yaml:"orbitGain"`
	AltitudeGain     float64       `yaml:"altitudeGain"`
	MaxApproachSpeed float64       `yaml:"maxApproachSpeed"`
	ApproachTimeout  time.Duration `yaml:"approachTimeout"`

	HoverRadiusFactor float64       `yaml:"hoverRadiusFactor"`
	HoverTolerance    float64       `yaml:"hoverTolerance"`
	AltitudeTolerance float64       `yaml:"altitudeTolerance"`
	StabilizeTicks    int           `yaml:"stabilizeTicks"`
	EntryDuration     time.Duration `yaml:"entryDuration"`
}

// DefaultOrbitConfig returns the gains and timings tuned for a small multirotor
// flying three 4 m orbits around the origin.
func DefaultOrbitConfig() OrbitConfig {
	return OrbitConfig{
		Radius:            4,
		Altitude:          4,
		NumOrbits:         3,
		AngularSpeed:      0.2,
		LoopRate:          20,
		ApproachGain:      1.5,
		EntryGain:         1.2,
		OrbitGain:         2.0,
		AltitudeGain:      1.5,
		MaxApproachSpeed:  5,
		ApproachTimeout:   30 * time.Second,
		HoverRadiusFactor: 1.5,
		HoverTolerance:    2.0,
		AltitudeTolerance: 0.5,
		StabilizeTicks:    40,
		EntryDuration:     5 * time.Second,
	}
}

func (c OrbitConfig) Validate() error {
	switch {
	case c.Radius <= 0:
		return errors.New("orbit radius must be positive")
	case c.NumOrbits < 1:
		return errors.New("at least one orbit is required")
	case c.AngularSpeed <= 0:
		return errors.New("angular speed must be positive")
	case c.LoopRate <= 0:
		return errors.New("loop rate must be positive")
	case c.Tick() <= 0:
		return fmt.Errorf("loop rate %g Hz is too high", c.LoopRate)
	case c.MaxApproachSpeed <= 0:
		return errors.New("max approach speed must be positive")
	case c.HoverRadiusFactor < 1:
		return errors.New("hover radius factor must be at least 1")
	case c.StabilizeTicks < 0:
		return errors.New("stabilize ticks must not be negative")
	case c.ApproachTimeout < 0 || c.EntryDuration < 0:
		return errors.New("durations must not be negative")
	}
	return nil
}

// Tick returns the control loop period.
func (c OrbitConfig) Tick() time.Duration {
	return time.Duration(float64(time.Second) / c.LoopRate)
}

// Center returns the orbit center in the horizontal plane.
func (c OrbitConfig) Center() r2.Point {
	return r2.Point{X: c.CenterNorth, Y: c.CenterEast}
}

// OrbitResult summarizes a completed maneuver.
type OrbitResult struct {
	EntryAngle   float64 // radians, bearing from the center to the entry point
	HoverReached bool    // false when the approach ended on timeout
	Sweep        float64 // total angle flown in the orbit phase, radians
	Ticks        [4]int  // ticks spent per Phase
}

// OrbitController flies an approach, a spiral entry and a number of full
// orbits around a fixed center using velocity setpoints.
type OrbitController struct {
	vehicle interface {
		telemetry.Provider
		vehicle.Actuator
	}
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Collector
	config  OrbitConfig
	tick    time.Duration
}

// NewOrbitController creates an orbit controller sharing the controller's
// vehicle, clock, logger and metrics.
func NewOrbitController(c *Controller, config OrbitConfig) (*OrbitController, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orbit configuration: %w", err)
	}

	return &OrbitController{
		vehicle: c.vehicle,
		clock:   c.clock,
		logger:  c.logger.With(slog.String("maneuver", "orbit")),
		metrics: c.metrics,
		config:  config,
		tick:    config.Tick(),
	}, nil
}

// Run executes the four phases in order. A telemetry or actuation failure in
// any phase aborts the maneuver; an approach timeout does not.
func (o *OrbitController) Run(ctx context.Context) (*OrbitResult, error) {
	var result OrbitResult

	if err := o.approach(ctx, &result); err != nil {
		return &result, fmt.Errorf("%s: %w", PhaseApproach, err)
	}
	if err := o.stabilize(ctx, &result); err != nil {
		return &result, fmt.Errorf("%s: %w", PhaseStabilize, err)
	}
	if err := o.entry(ctx, &result); err != nil {
		return &result, fmt.Errorf("%s: %w", PhaseEntry, err)
	}
	if err := o.orbit(ctx, &result); err != nil {
		return &result, fmt.Errorf("%s: %w", PhaseOrbit, err)
	}

	o.logger.Info("orbit complete", slog.Float64("sweep", result.Sweep))
	return &result, nil
}

func (o *OrbitController) hoverRadius() float64 {
	return o.config.Radius * o.config.HoverRadiusFactor
}

func (o *OrbitController) targetDown() float64 {
	return -o.config.Altitude
}

// onCircle returns the point at angle on the circle of radius r around the
// orbit center. Angles are measured from north towards east.
func (o *OrbitController) onCircle(angle, r float64) r2.Point {
	return o.config.Center().Add(r2.Point{X: math.Cos(angle), Y: math.Sin(angle)}.Mul(r))
}

// send emits one velocity setpoint and waits for the rest of the tick.
func (o *OrbitController) send(ctx context.Context, phase Phase, v r2.Point, vd, yaw float64, result *OrbitResult) error {
	if err := o.emit(ctx, phase, v, vd, yaw, result); err != nil {
		return err
	}
	return o.clock.Sleep(ctx, o.tick)
}

func (o *OrbitController) emit(ctx context.Context, phase Phase, v r2.Point, vd, yaw float64, result *OrbitResult) error {
	sp := vehicle.VelocitySetpoint{North: v.X, East: v.Y, Down: vd, Yaw: yaw}
	if err := o.vehicle.SetVelocity(ctx, sp); err != nil {
		return fmt.Errorf("sending velocity setpoint: %w", err)
	}
	o.metrics.SetpointSent(metrics.SetpointVelocity)
	o.metrics.PhaseTick(phase.String())
	result.Ticks[phase]++
	return nil
}

// yawToCenter returns the heading from p to the orbit center in degrees.
func (o *OrbitController) yawToCenter(p r2.Point) float64 {
	return ned.Heading(ned.Bearing(p, o.config.Center()))
}

func (o *OrbitController) approach(ctx context.Context, result *OrbitResult) error {
	start, err := telemetry.ReadPosition(ctx, o.vehicle)
	if err != nil {
		return err
	}

	// the hover point lies beyond the center as seen from the vehicle
	result.EntryAngle = ned.Bearing(start.Horizontal(), o.config.Center()) + math.Pi
	hover := o.onCircle(result.EntryAngle, o.hoverRadius())

	o.logger.Info("approaching hover point",
		slog.String("hover", fmt.Sprintf("(%.1f, %.1f)", hover.X, hover.Y)),
		slog.Float64("entry_angle", ned.Heading(result.EntryAngle)))

	began := o.clock.Now()
	for o.clock.Now().Sub(began) < o.config.ApproachTimeout {
		pos, err := telemetry.ReadPosition(ctx, o.vehicle)
		if err != nil {
			return err
		}

		errH := hover.Sub(pos.Horizontal())
		errD := o.targetDown() - pos.Down
		dist := errH.Norm()

		v := errH.Mul(o.config.ApproachGain)
		if speed := v.Norm(); speed > o.config.MaxApproachSpeed {
			v = v.Mul(o.config.MaxApproachSpeed / speed)
		}

		yaw := ned.Heading(math.Atan2(errH.Y, errH.X))
		if err = o.emit(ctx, PhaseApproach, v, o.config.AltitudeGain*errD, yaw, result); err != nil {
			return err
		}

		// stabilizing starts right away once the hover point is reached
		if dist < o.config.HoverTolerance && math.Abs(errD) < o.config.AltitudeTolerance {
			result.HoverReached = true
			o.logger.Info("at hover point", slog.String("distance", humanize.FtoaWithDigits(dist, 2)+"m"))
			return nil
		}

		if err = o.clock.Sleep(ctx, o.tick); err != nil {
			return err
		}
	}

	o.logger.Warn(fmt.Sprintf("approach timed out after %s, proceeding", o.config.ApproachTimeout))
	return nil
}

func (o *OrbitController) stabilize(ctx context.Context, result *OrbitResult) error {
	o.logger.Info("stabilizing", slog.Int("ticks", o.config.StabilizeTicks))
	for range o.config.StabilizeTicks {
		if err := o.send(ctx, PhaseStabilize, r2.Point{}, 0, 0, result); err != nil {
			return err
		}
	}
	return nil
}

func (o *OrbitController) entry(ctx context.Context, result *OrbitResult) error {
	steps := int(o.config.EntryDuration.Seconds() * o.config.LoopRate)
	hoverRadius := o.hoverRadius()
	angle := result.EntryAngle
	tangent := r2.Point{X: -math.Sin(angle), Y: math.Cos(angle)}

	o.logger.Info("entering orbit", slog.Int("steps", steps))
	for step := range steps {
		progress := float64(step) / float64(steps)
		eased := 1 - (1-progress)*(1-progress)
		target := o.onCircle(angle, hoverRadius+(o.config.Radius-hoverRadius)*eased)

		pos, err := telemetry.ReadPosition(ctx, o.vehicle)
		if err != nil {
			return err
		}

		v := target.Sub(pos.Horizontal()).Mul(o.config.EntryGain).
			Add(tangent.Mul(o.config.AngularSpeed * o.config.Radius * eased))
		vd := o.config.AltitudeGain * (o.targetDown() - pos.Down)

		if err = o.send(ctx, PhaseEntry, v, vd, o.yawToCenter(pos.Horizontal()), result); err != nil {
			return err
		}
	}
	return nil
}

func (o *OrbitController) orbit(ctx context.Context, result *OrbitResult) error {
	total := float64(o.config.NumOrbits) * 2 * math.Pi
	start := result.EntryAngle
	end := start + total
	increment := o.config.AngularSpeed * o.tick.Seconds()
	r := o.config.Radius
	omega := o.config.AngularSpeed

	var lap int
	for angle := start; angle < end; {
		angle = math.Min(angle+increment, end)
		result.Sweep = angle - start

		if current := min(int(result.Sweep/(2*math.Pi))+1, o.config.NumOrbits); current > lap {
			lap = current
			o.logger.Info(fmt.Sprintf("orbit %d/%d", lap, o.config.NumOrbits))
		}

		pos, err := telemetry.ReadPosition(ctx, o.vehicle)
		if err != nil {
			return err
		}

		ideal := o.onCircle(angle, r)
		feedForward := r2.Point{X: -math.Sin(angle), Y: math.Cos(angle)}.Mul(r * omega)
		v := feedForward.Add(ideal.Sub(pos.Horizontal()).Mul(o.config.OrbitGain))
		vd := o.config.AltitudeGain * (o.targetDown() - pos.Down)

		if err = o.send(ctx, PhaseOrbit, v, vd, o.yawToCenter(pos.Horizontal()), result); err != nil {
			return err
		}
	}
	return nil
}
