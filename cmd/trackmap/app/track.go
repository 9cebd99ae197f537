package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r2"

	"github.com/roman-kulish/drone-navigator/internal/analysis"
	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

// TrackData is everything the renderer draws for one mission.
type TrackData struct {
	Name      string
	StartTime time.Time
	Events    []mission.Event // time ordered
	Segments  []analysis.Segment
	Obstacles []planner.Obstacle
	Report    *analysis.Report
	Bounds    r2.Rect // north on X, east on Y
}

// NewTrackData sorts the log, computes the flight metrics and the extent of
// everything drawn, obstacles and their safety rings included.
func NewTrackData(name string, events []mission.Event, obstacles []planner.Obstacle, margin float64) (*TrackData, error) {
	report, err := analysis.Compute(events, obstacles)
	if err != nil {
		return nil, err
	}

	sorted := analysis.Sorted(events)
	bounds := r2.EmptyRect()
	for _, e := range sorted {
		bounds = bounds.AddPoint(e.Position.Horizontal())
	}
	for _, o := range obstacles {
		r := o.Radius() + margin
		bounds = bounds.AddRect(r2.RectFromCenterSize(o.Center(), r2.Point{X: 2 * r, Y: 2 * r}))
	}

	return &TrackData{
		Name:      name,
		StartTime: sorted[0].Timestamp,
		Events:    sorted,
		Segments:  analysis.Segments(sorted),
		Obstacles: obstacles,
		Report:    report,
		Bounds:    bounds.ExpandedByMargin(1),
	}, nil
}

// parseObstacles reads the "north:east:radius,..." command line form.
func parseObstacles(s string) ([]planner.Obstacle, error) {
	var obstacles []planner.Obstacle
	for i, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("obstacle %d: expected north:east:radius, got '%s'", i, item)
		}

		var values [3]float64
		for j, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("obstacle %d: invalid number '%s'", i, p)
			}
			values[j] = v
		}

		o, err := planner.NewObstacle(values[0], values[1], values[2])
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		obstacles = append(obstacles, o)
	}
	return obstacles, nil
}
