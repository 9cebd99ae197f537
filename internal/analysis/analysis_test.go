package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func event(sec float64, north, east float64, kind mission.EventKind) mission.Event {
	return mission.Event{
		Timestamp: epoch.Add(time.Duration(sec * float64(time.Second))),
		Position:  ned.Position{North: north, East: east, Down: -3},
		Kind:      kind,
	}
}

func TestCompute(t *testing.T) {
	// logged out of order on purpose
	events := []mission.Event{
		event(2, 3, 4, mission.EventReachedWaypoint),
		event(0, 0, 0, mission.EventPreWaypointCheck),
		event(1, 0, 0, mission.EventAvoidedAtStart),
		event(4, 3, 10, mission.EventReachedWaypoint),
	}
	obstacles := []planner.Obstacle{planner.MustObstacle(3, 7, 1)}

	report, err := Compute(events, obstacles)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if report.Samples != 4 {
		t.Errorf("Samples = %d, want 4", report.Samples)
	}
	if report.TotalTime != 4*time.Second {
		t.Errorf("TotalTime = %s, want 4s", report.TotalTime)
	}
	if math.Abs(report.TotalDistance-11) > 1e-9 {
		t.Errorf("TotalDistance = %f, want 11", report.TotalDistance)
	}
	if report.AvoidanceCount != 1 {
		t.Errorf("AvoidanceCount = %d, want 1", report.AvoidanceCount)
	}
	if math.Abs(report.MaxSpeed-5) > 1e-9 {
		t.Errorf("MaxSpeed = %f, want 5", report.MaxSpeed)
	}

	// velocities (0,0), (3,4), (0,3) over dt 1, 1, 2
	// accelerations (3,4)/1 and (-3,-1)/2
	want := 25 + (9+1)/4.0
	if math.Abs(report.Smoothness-want) > 1e-9 {
		t.Errorf("Smoothness = %f, want %f", report.Smoothness, want)
	}

	if len(report.Obstacles) != 1 {
		t.Fatalf("got %d obstacle distances, want 1", len(report.Obstacles))
	}
	if d := report.Obstacles[0]; math.Abs(d.MinDistance-3) > 1e-9 || math.Abs(d.Clearance-2) > 1e-9 {
		t.Errorf("obstacle distance = %+v, want 3 with clearance 2", d)
	}
}

func TestComputeSkipsZeroDt(t *testing.T) {
	events := []mission.Event{
		event(0, 0, 0, mission.EventPreWaypointCheck),
		event(1, 1, 0, mission.EventReachedWaypoint),
		event(1, 1, 0, mission.EventPreWaypointCheck),
		event(2, 2, 0, mission.EventReachedWaypoint),
	}

	report, err := Compute(events, nil)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if math.IsNaN(report.Smoothness) || math.IsInf(report.Smoothness, 0) {
		t.Fatalf("Smoothness = %f, want finite", report.Smoothness)
	}
	if report.Smoothness != 0 {
		t.Errorf("Smoothness = %f, want 0 for constant velocity", report.Smoothness)
	}
	if math.Abs(report.TotalDistance-2) > 1e-9 {
		t.Errorf("TotalDistance = %f, want 2", report.TotalDistance)
	}
}

func TestComputeSingleSample(t *testing.T) {
	report, err := Compute([]mission.Event{event(0, 1, 1, mission.EventPreWaypointCheck)}, nil)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if report.TotalTime != 0 || report.TotalDistance != 0 || report.Smoothness != 0 {
		t.Errorf("report = %+v, want zero metrics", report)
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := Compute(nil, nil); !errors.Is(err, ErrNoEvents) {
		t.Errorf("Compute() error = %v, want %v", err, ErrNoEvents)
	}
}

func TestSortedIsStable(t *testing.T) {
	events := []mission.Event{
		event(1, 0, 0, mission.EventReachedWaypoint),
		event(1, 0, 0, mission.EventPreWaypointCheck),
		event(0, 0, 0, mission.EventAvoidedAtStart),
	}

	sorted := Sorted(events)
	want := []mission.EventKind{mission.EventAvoidedAtStart, mission.EventReachedWaypoint, mission.EventPreWaypointCheck}
	for i, e := range sorted {
		if e.Kind != want[i] {
			t.Errorf("sorted[%d] = %s, want %s", i, e.Kind, want[i])
		}
	}
	if events[0].Kind != mission.EventReachedWaypoint {
		t.Error("Sorted() modified its input")
	}
}
