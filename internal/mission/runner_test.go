package mission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/control"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/vehicletest"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	rec     *vehicletest.Recorder
	clock   *clock.Manual
	metrics *metrics.Collector
	runner  *Runner
}

func newFixture(t *testing.T, obstacles ...planner.Obstacle) *fixture {
	t.Helper()

	detector, err := planner.NewDetector(obstacles)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	avoider, err := planner.NewAvoidancePlanner(3)
	if err != nil {
		t.Fatalf("NewAvoidancePlanner: %v", err)
	}
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	rec := vehicletest.New(ned.Position{Down: -3})
	clk := clock.NewManual(epoch)
	ctrl := control.NewController(rec, control.WithClock(clk))

	return &fixture{
		rec:     rec,
		clock:   clk,
		metrics: collector,
		runner:  NewRunner(ctrl, rec, detector, avoider, WithClock(clk), WithMetrics(collector)),
	}
}

func survey(t *testing.T) []ned.Waypoint {
	t.Helper()

	wps, err := planner.Lawnmower(planner.Area{NorthMax: 20, EastMax: 10}, 5, -3)
	if err != nil {
		t.Fatalf("Lawnmower: %v", err)
	}
	return wps
}

func TestRunWithAvoidance(t *testing.T) {
	f := newFixture(t, planner.MustObstacle(5, 9, 2))
	wps := survey(t)

	if err := f.runner.Run(context.Background(), wps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// leaving (5, 10) for (5, 0) starts inside the obstacle
	if got := f.runner.AvoidanceCount(); got != 1 {
		t.Fatalf("AvoidanceCount() = %d, want 1", got)
	}

	events := f.runner.Events()
	if len(events) != 2*len(wps)+1 {
		t.Fatalf("got %d events, want %d", len(events), 2*len(wps)+1)
	}

	var avoided *Event
	for i := range events {
		if events[i].Kind == EventAvoidedAtStart {
			avoided = &events[i]
		}
	}
	if avoided == nil {
		t.Fatal("no avoided_at_start event")
	}
	if avoided.WaypointIndex != 4 || avoided.TargetNorth != 5 || avoided.TargetEast != 0 {
		t.Errorf("avoided event = %+v, want waypoint 4 at (5, 0)", *avoided)
	}

	// ortho of (0, 1) is (-1, 0); 2+3 meters from (5, 9)
	if avoided.Position.HorizontalDistance(ned.Position{North: 0, East: 9}) > 1e-9 {
		t.Errorf("avoided at %+v, want (0, 9)", avoided.Position)
	}

	last := events[len(events)-1]
	if last.Kind != EventReachedWaypoint || last.WaypointIndex != len(wps) {
		t.Errorf("last event = %+v", last)
	}
	if last.Position != wps[len(wps)-1] {
		t.Errorf("final position = %+v, want %+v", last.Position, wps[len(wps)-1])
	}

	if got := testutil.ToFloat64(f.metrics.WaypointsReached); got != float64(len(wps)) {
		t.Errorf("waypoints reached metric = %v, want %d", got, len(wps))
	}
	if got := testutil.ToFloat64(f.metrics.Avoidances); got != 1 {
		t.Errorf("avoidances metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.Missions.WithLabelValues("success")); got != 1 {
		t.Errorf("missions{result=success} = %v, want 1", got)
	}
}

func TestRunEventOrder(t *testing.T) {
	f := newFixture(t)
	wps := []ned.Waypoint{{North: 2, Down: -3}, {North: 2, East: 2, Down: -3}}

	if err := f.runner.Run(context.Background(), wps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []EventKind{EventPreWaypointCheck, EventReachedWaypoint, EventPreWaypointCheck, EventReachedWaypoint}
	events := f.runner.Events()
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Kind != want[i] {
			t.Errorf("event %d kind = %s, want %s", i, e.Kind, want[i])
		}
		if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp goes backwards", i)
		}
	}
	if events[0].Position != (ned.Position{Down: -3}) {
		t.Errorf("pre-check position = %+v, want start position", events[0].Position)
	}
	if f.runner.AvoidanceCount() != 0 {
		t.Errorf("AvoidanceCount() = %d, want 0", f.runner.AvoidanceCount())
	}
}

func TestRunCoincidentPosition(t *testing.T) {
	// the vehicle starts on the obstacle center
	f := newFixture(t, planner.MustObstacle(0, 0, 2))
	wps := []ned.Waypoint{{North: 10, Down: -3}}

	if err := f.runner.Run(context.Background(), wps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.runner.AvoidanceCount(); got != 0 {
		t.Errorf("AvoidanceCount() = %d, want 0", got)
	}
	if got := testutil.ToFloat64(f.metrics.UnresolvedConflicts); got != 1 {
		t.Errorf("unresolved conflicts metric = %v, want 1", got)
	}
	if got := f.rec.Position(); got != wps[0] {
		t.Errorf("position = %+v, want the waypoint to be flown anyway", got)
	}
}

func TestRunNoWaypoints(t *testing.T) {
	f := newFixture(t)

	if err := f.runner.Run(context.Background(), nil); !errors.Is(err, ErrNoWaypoints) {
		t.Fatalf("Run() error = %v, want %v", err, ErrNoWaypoints)
	}
	if got := testutil.ToFloat64(f.metrics.Missions.WithLabelValues("failure")); got != 1 {
		t.Errorf("missions{result=failure} = %v, want 1", got)
	}
}

func TestRunFeedFailureAborts(t *testing.T) {
	f := newFixture(t)
	// pre-check, goto start and reached for the first waypoint, then fail
	f.rec.ReadLimit = 3
	wps := []ned.Waypoint{{North: 2, Down: -3}, {North: 4, Down: -3}}

	err := f.runner.Run(context.Background(), wps)
	if !errors.Is(err, vehicletest.ErrFeedExhausted) {
		t.Fatalf("Run() error = %v, want %v", err, vehicletest.ErrFeedExhausted)
	}
	if got := len(f.runner.Events()); got != 2 {
		t.Errorf("got %d events, want the 2 recorded before the failure", got)
	}
}

type failingNavigator struct{ err error }

func (n failingNavigator) Goto(context.Context, ned.Position, float64, time.Duration) error {
	return n.err
}

func TestRunNavigatorFailureAborts(t *testing.T) {
	errLink := errors.New("link lost")

	detector, _ := planner.NewDetector(nil)
	avoider, _ := planner.NewAvoidancePlanner(3)
	rec := vehicletest.New(ned.Position{})
	runner := NewRunner(failingNavigator{errLink}, rec, detector, avoider, WithClock(clock.NewManual(epoch)))

	err := runner.Run(context.Background(), []ned.Waypoint{{North: 1}, {North: 2}})
	if !errors.Is(err, errLink) {
		t.Fatalf("Run() error = %v, want %v", err, errLink)
	}
	if got := len(runner.Events()); got != 1 {
		t.Errorf("got %d events, want only the first pre-check", got)
	}
}

func TestRunResetsState(t *testing.T) {
	f := newFixture(t, planner.MustObstacle(5, 9, 2))
	wps := survey(t)

	for range 2 {
		if err := f.runner.Run(context.Background(), wps); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	// second run starts at (20, 10), far from the obstacle at the first pre-check
	if got := f.runner.AvoidanceCount(); got != 1 {
		t.Errorf("AvoidanceCount() = %d after the second run, want 1", got)
	}
	if got := len(f.runner.Events()); got != 2*len(wps)+1 {
		t.Errorf("events leaked between runs: %d", got)
	}
}
