package planner

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Detector checks positions against a fixed list of obstacles
type Detector struct {
	obstacles []Obstacle
}

// NewDetector creates a detector over obstacles in the given order. Zero
// value obstacles (not built through NewObstacle) are rejected.
func NewDetector(obstacles []Obstacle) (*Detector, error) {
	for i, o := range obstacles {
		if o.radius <= 0 {
			return nil, NewConfigError(fmt.Sprintf("planner.Detector: obstacle %d has non-positive radius", i))
		}
	}
	return &Detector{obstacles: append([]Obstacle(nil), obstacles...)}, nil
}

// Detect returns the first configured obstacle that contains p, in
// configuration order. The nearest obstacle is not searched for.
func (d *Detector) Detect(p r2.Point) (Obstacle, bool) {
	for _, o := range d.obstacles {
		if o.Contains(p) {
			return o, true
		}
	}
	return Obstacle{}, false
}

// Obstacles returns a copy of the configured obstacles
func (d *Detector) Obstacles() []Obstacle {
	return append([]Obstacle(nil), d.obstacles...)
}
