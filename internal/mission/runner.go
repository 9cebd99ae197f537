// Package mission flies a waypoint sequence with obstacle avoidance and
// records what happened along the way.
package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
)

var ErrNoWaypoints = errors.New("mission has no waypoints")

// Navigator moves the vehicle along a straight line to a target.
type Navigator interface {
	Goto(ctx context.Context, target ned.Position, speed float64, tick time.Duration) error
}

// Config holds the speeds and pacing of a mission run.
type Config struct {
	TransitSpeed float64       `yaml:"transitSpeed"`
	AvoidSpeed   float64       `yaml:"avoidSpeed"`
	TickInterval time.Duration `yaml:"tickInterval"`
	Hold         time.Duration `yaml:"hold"`
}

func DefaultConfig() Config {
	return Config{
		TransitSpeed: 2.0,
		AvoidSpeed:   1.5,
		TickInterval: 50 * time.Millisecond,
		Hold:         500 * time.Millisecond,
	}
}

// WithLogger sets the logger for the runner
func WithLogger(logger *slog.Logger) func(*Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("component", "mission"))
	}
}

// WithClock sets the clock used for event timestamps and holds
func WithClock(clk clock.Clock) func(*Runner) {
	return func(r *Runner) {
		r.clock = clk
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(m *metrics.Collector) func(*Runner) {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithConfig overrides the default speeds and pacing
func WithConfig(conf Config) func(*Runner) {
	return func(r *Runner) {
		r.config = conf
	}
}

// Runner flies waypoints one at a time. Before each waypoint it checks the
// vehicle's current position against the obstacles and detours around a
// conflicting one first. A Runner is not safe for concurrent use.
type Runner struct {
	navigator Navigator
	feed      telemetry.Provider
	detector  *planner.Detector
	avoider   *planner.AvoidancePlanner
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Collector
	config    Config

	events         []Event
	avoidanceCount int
}

func NewRunner(nav Navigator, feed telemetry.Provider, detector *planner.Detector, avoider *planner.AvoidancePlanner, options ...func(*Runner)) *Runner {
	r := Runner{
		navigator: nav,
		feed:      feed,
		detector:  detector,
		avoider:   avoider,
		clock:     clock.Real{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		config:    DefaultConfig(),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run flies the waypoints in order. Any error aborts the whole run; the
// events recorded up to that point stay available.
func (r *Runner) Run(ctx context.Context, waypoints []ned.Waypoint) (err error) {
	defer func() { r.metrics.MissionFinished(err) }()

	r.events = r.events[:0]
	r.avoidanceCount = 0

	if len(waypoints) == 0 {
		return ErrNoWaypoints
	}

	r.logger.Info(fmt.Sprintf("starting mission with %d waypoints", len(waypoints)))

	for i, wp := range waypoints {
		if err = r.fly(ctx, i+1, len(waypoints), wp); err != nil {
			return fmt.Errorf("waypoint %d: %w", i+1, err)
		}
	}

	r.logger.Info("mission finished", slog.Int("avoidance_count", r.avoidanceCount))
	return nil
}

func (r *Runner) fly(ctx context.Context, index, total int, wp ned.Waypoint) error {
	r.logger.Info(fmt.Sprintf("waypoint %d/%d -> (%.2f, %.2f, %.2f)", index, total, wp.North, wp.East, wp.Down))

	pos, err := r.record(ctx, EventPreWaypointCheck, index, wp)
	if err != nil {
		return err
	}

	// only the current position is checked, not the segment to the waypoint
	if obstacle, hit := r.detector.Detect(pos.Horizontal()); hit {
		r.logger.Info("obstacle detected near current position", slog.String("obstacle", obstacle.String()))

		if avoid, ok := r.avoider.AvoidPoint(pos.Horizontal(), obstacle); ok {
			r.logger.Info(fmt.Sprintf("detouring via (%.2f, %.2f)", avoid.X, avoid.Y))

			if err = r.navigator.Goto(ctx, ned.FromHorizontal(avoid, wp.Down), r.config.AvoidSpeed, r.config.TickInterval); err != nil {
				return fmt.Errorf("flying to avoidance point: %w", err)
			}
			r.avoidanceCount++
			r.metrics.Avoided()

			if _, err = r.record(ctx, EventAvoidedAtStart, index, wp); err != nil {
				return err
			}
		} else {
			r.logger.Warn("position coincides with obstacle center, no avoidance possible", slog.String("obstacle", obstacle.String()))
			r.metrics.UnresolvedConflict()
		}
	}

	if err = r.navigator.Goto(ctx, wp, r.config.TransitSpeed, r.config.TickInterval); err != nil {
		return fmt.Errorf("flying to waypoint: %w", err)
	}

	if _, err = r.record(ctx, EventReachedWaypoint, index, wp); err != nil {
		return err
	}
	r.metrics.WaypointReached()

	return r.clock.Sleep(ctx, r.config.Hold)
}

// record reads one position sample and appends it to the log.
func (r *Runner) record(ctx context.Context, kind EventKind, index int, wp ned.Waypoint) (ned.Position, error) {
	pos, err := telemetry.ReadPosition(ctx, r.feed)
	if err != nil {
		return ned.Position{}, err
	}

	r.events = append(r.events, Event{
		Timestamp:     r.clock.Now(),
		Position:      pos,
		Kind:          kind,
		WaypointIndex: index,
		TargetNorth:   wp.North,
		TargetEast:    wp.East,
	})
	return pos, nil
}

// AvoidanceCount returns the number of detours flown in the last run.
func (r *Runner) AvoidanceCount() int {
	return r.avoidanceCount
}

// Events returns a copy of the log of the last run.
func (r *Runner) Events() []Event {
	events := make([]Event, len(r.events))
	copy(events, r.events)
	return events
}
