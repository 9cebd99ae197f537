package control

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/sim"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/vehicletest"
)

func testOrbitConfig() OrbitConfig {
	conf := DefaultOrbitConfig()
	conf.CenterNorth = 10
	conf.CenterEast = 0
	conf.NumOrbits = 1
	return conf
}

func TestOrbitConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*OrbitConfig)
	}{
		{"zero radius", func(c *OrbitConfig) { c.Radius = 0 }},
		{"no orbits", func(c *OrbitConfig) { c.NumOrbits = 0 }},
		{"zero angular speed", func(c *OrbitConfig) { c.AngularSpeed = 0 }},
		{"zero loop rate", func(c *OrbitConfig) { c.LoopRate = 0 }},
		{"loop rate below clock resolution", func(c *OrbitConfig) { c.LoopRate = 2e9 }},
		{"hover inside orbit", func(c *OrbitConfig) { c.HoverRadiusFactor = 0.5 }},
	}

	if err := testOrbitConfig().Validate(); err != nil {
		t.Fatalf("Validate() on defaults: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testOrbitConfig()
			tt.modify(&conf)
			if err := conf.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestOrbitRun(t *testing.T) {
	conf := testOrbitConfig()

	rec := vehicletest.New(ned.Position{Down: -4})
	rec.VelocityStep = conf.Tick()

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	clk := clock.NewManual(epoch)
	ctrl := NewController(rec, WithClock(clk), WithMetrics(collector))
	orbit, err := NewOrbitController(ctrl, conf)
	if err != nil {
		t.Fatalf("NewOrbitController() error = %v", err)
	}

	res, err := orbit.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// vehicle at origin, center due north: enter from the far (north) side
	if math.Abs(math.Abs(res.EntryAngle)-math.Pi) > 1e-9 {
		t.Errorf("entry angle = %f, want ±π", res.EntryAngle)
	}
	if !res.HoverReached {
		t.Error("hover point was not reached")
	}

	total := 2 * math.Pi
	if math.Abs(res.Sweep-total) > 1e-9 {
		t.Errorf("sweep = %f, want %f", res.Sweep, total)
	}

	increment := conf.AngularSpeed * conf.Tick().Seconds()
	if want := int(math.Ceil(total / increment)); res.Ticks[PhaseOrbit] != want {
		t.Errorf("orbit ticks = %d, want %d", res.Ticks[PhaseOrbit], want)
	}
	if res.Ticks[PhaseStabilize] != conf.StabilizeTicks {
		t.Errorf("stabilize ticks = %d, want %d", res.Ticks[PhaseStabilize], conf.StabilizeTicks)
	}
	if res.Ticks[PhaseEntry] != 100 {
		t.Errorf("entry ticks = %d, want 100", res.Ticks[PhaseEntry])
	}

	sum := totalTicks(res.Ticks[:])
	if len(rec.Velocities) != sum {
		t.Errorf("got %d velocity setpoints, want %d", len(rec.Velocities), sum)
	}
	if got := testutil.ToFloat64(collector.Setpoints.WithLabelValues(metrics.SetpointVelocity)); got != float64(sum) {
		t.Errorf("velocity setpoint metric = %v, want %d", got, sum)
	}

	// every tick is paced except the one that reaches the hover point
	if got, want := clk.Now().Sub(epoch), time.Duration(sum-1)*conf.Tick(); got != want {
		t.Errorf("elapsed = %s, want %s", got, want)
	}

	// the closed loop should keep the vehicle near the circle
	pos := rec.Position()
	if d := pos.HorizontalDistance(ned.Position{North: conf.CenterNorth, East: conf.CenterEast}); math.Abs(d-conf.Radius) > 0.5 {
		t.Errorf("final distance from center = %f, want about %f", d, conf.Radius)
	}
	if math.Abs(pos.Down+conf.Altitude) > 0.5 {
		t.Errorf("final down = %f, want about %f", pos.Down, -conf.Altitude)
	}
}

func totalTicks(ticks []int) int {
	var n int
	for _, t := range ticks {
		n += t
	}
	return n
}

func TestOrbitOnSimulatorKeepsLoopRate(t *testing.T) {
	conf := testOrbitConfig()
	ctx := context.Background()

	clk := clock.NewManual(epoch)
	v := sim.New(ned.Position{}, sim.WithClock(clk))
	ctrl := NewController(v, WithClock(clk), WithDelays(Delays{}))

	if err := ctrl.Arm(ctx); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	if err := ctrl.Takeoff(ctx, conf.Altitude); err != nil {
		t.Fatalf("Takeoff() error = %v", err)
	}
	clk.Advance(2 * time.Second)
	if err := ctrl.StartOffboardVelocity(ctx); err != nil {
		t.Fatalf("StartOffboardVelocity() error = %v", err)
	}

	orbit, err := NewOrbitController(ctrl, conf)
	if err != nil {
		t.Fatalf("NewOrbitController() error = %v", err)
	}

	began := clk.Now()
	res, err := orbit.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.HoverReached {
		t.Error("hover point was not reached")
	}

	// reading the feed must not add a period to every tick
	ticks := totalTicks(res.Ticks[:])
	elapsed := clk.Now().Sub(began)
	if lo, hi := time.Duration(ticks-1)*conf.Tick(), time.Duration(ticks+1)*conf.Tick(); elapsed < lo || elapsed > hi {
		t.Errorf("%d ticks took %s, want between %s and %s", ticks, elapsed, lo, hi)
	}
}

func TestOrbitApproachTimeout(t *testing.T) {
	conf := testOrbitConfig()

	// VelocityStep is zero so the vehicle never moves
	rec := vehicletest.New(ned.Position{Down: -4})
	clk := clock.NewManual(epoch)
	ctrl := NewController(rec, WithClock(clk))

	orbit, err := NewOrbitController(ctrl, conf)
	if err != nil {
		t.Fatalf("NewOrbitController() error = %v", err)
	}

	res, err := orbit.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, approach timeout must not be fatal", err)
	}
	if res.HoverReached {
		t.Error("HoverReached = true for a stationary vehicle")
	}

	want := int(conf.ApproachTimeout / conf.Tick())
	if res.Ticks[PhaseApproach] != want {
		t.Errorf("approach ticks = %d, want %d", res.Ticks[PhaseApproach], want)
	}
	if got := clk.Now().Sub(epoch); got != conf.ApproachTimeout+time.Duration(totalTicks(res.Ticks[PhaseStabilize:]))*conf.Tick() {
		t.Errorf("elapsed = %s after %v ticks", got, res.Ticks)
	}
	for _, sp := range rec.Velocities[:want] {
		if math.Hypot(sp.North, sp.East) > conf.MaxApproachSpeed+1e-9 {
			t.Fatalf("approach speed %f exceeds %f", math.Hypot(sp.North, sp.East), conf.MaxApproachSpeed)
		}
	}
	if res.Ticks[PhaseOrbit] == 0 {
		t.Error("orbit phase did not run after the approach timeout")
	}
}

func TestOrbitFeedFailureIsFatal(t *testing.T) {
	conf := testOrbitConfig()

	rec := vehicletest.New(ned.Position{Down: -4})
	rec.VelocityStep = conf.Tick()
	rec.ReadLimit = 10
	ctrl := NewController(rec, WithClock(clock.NewManual(epoch)))

	orbit, err := NewOrbitController(ctrl, conf)
	if err != nil {
		t.Fatalf("NewOrbitController() error = %v", err)
	}

	res, err := orbit.Run(context.Background())
	if !errors.Is(err, vehicletest.ErrFeedExhausted) {
		t.Fatalf("Run() error = %v, want %v", err, vehicletest.ErrFeedExhausted)
	}
	if res.Ticks[PhaseOrbit] != 0 || res.Ticks[PhaseStabilize] != 0 {
		t.Errorf("later phases ran after a fatal read: %v", res.Ticks)
	}
}

func TestOrbitContextCancelled(t *testing.T) {
	rec := vehicletest.New(ned.Position{Down: -4})
	ctrl := NewController(rec, WithClock(clock.NewManual(epoch)))

	orbit, err := NewOrbitController(ctrl, testOrbitConfig())
	if err != nil {
		t.Fatalf("NewOrbitController() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err = orbit.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestPhaseString(t *testing.T) {
	if got := PhaseEntry.String(); got != "entry" {
		t.Errorf("PhaseEntry.String() = %q", got)
	}
	if got := Phase(9).String(); got != "phase(9)" {
		t.Errorf("Phase(9).String() = %q", got)
	}
}
