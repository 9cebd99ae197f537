// Package analysis computes post-flight metrics from a mission log.
package analysis

import (
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

var ErrNoEvents = errors.New("mission log is empty")

// ObstacleDistance is the closest logged approach to one obstacle.
type ObstacleDistance struct {
	Obstacle    planner.Obstacle
	MinDistance float64 // to the center
	Clearance   float64 // MinDistance minus radius; negative means the vehicle was inside
}

// Report holds the flight metrics of one mission.
type Report struct {
	Samples        int
	TotalTime      time.Duration
	TotalDistance  float64 // planar, meters
	AvoidanceCount int     // events whose kind mentions avoidance
	Obstacles      []ObstacleDistance
	MaxSpeed       float64
	Smoothness     float64 // sum of squared planar accelerations
}

// Segment is the straight path between two consecutive log samples.
type Segment struct {
	From, To r2.Point
	Duration time.Duration
	Speed    float64 // zero when Duration is zero
}

// Sorted returns a copy of events ordered by timestamp. Equal timestamps keep
// their logged order.
func Sorted(events []mission.Event) []mission.Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b mission.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}

// Segments splits the time-ordered track into consecutive segments.
func Segments(events []mission.Event) []Segment {
	if len(events) < 2 {
		return nil
	}

	segments := make([]Segment, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		s := Segment{
			From:     events[i-1].Position.Horizontal(),
			To:       events[i].Position.Horizontal(),
			Duration: events[i].Timestamp.Sub(events[i-1].Timestamp),
		}
		if dt := s.Duration.Seconds(); dt > 0 {
			s.Speed = s.To.Sub(s.From).Norm() / dt
		}
		segments = append(segments, s)
	}
	return segments
}

// Compute derives the flight metrics from a mission log. Events are sorted by
// timestamp first. Samples logged at the same instant contribute to distance
// but are skipped for velocity and acceleration.
func Compute(events []mission.Event, obstacles []planner.Obstacle) (*Report, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	events = Sorted(events)
	report := Report{
		Samples:   len(events),
		TotalTime: events[len(events)-1].Timestamp.Sub(events[0].Timestamp),
	}

	for _, e := range events {
		if strings.Contains(string(e.Kind), "avoid") {
			report.AvoidanceCount++
		}
	}

	segments := Segments(events)
	for _, s := range segments {
		report.TotalDistance += s.To.Sub(s.From).Norm()
		report.MaxSpeed = math.Max(report.MaxSpeed, s.Speed)
	}
	report.Smoothness = smoothness(segments)

	for _, o := range obstacles {
		closest := math.Inf(1)
		for _, e := range events {
			closest = math.Min(closest, o.Distance(e.Position.Horizontal()))
		}
		report.Obstacles = append(report.Obstacles, ObstacleDistance{
			Obstacle:    o,
			MinDistance: closest,
			Clearance:   closest - o.Radius(),
		})
	}

	return &report, nil
}

func smoothness(segments []Segment) float64 {
	var (
		sum     float64
		prev    r2.Point
		hasPrev bool
	)

	for _, s := range segments {
		dt := s.Duration.Seconds()
		if dt <= 0 {
			continue
		}

		v := s.To.Sub(s.From).Mul(1 / dt)
		if hasPrev {
			a := v.Sub(prev).Mul(1 / dt)
			sum += a.Dot(a)
		}
		prev, hasPrev = v, true
	}
	return sum
}
