package planner

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Obstacle is a circular no-fly zone in the north/east plane
type Obstacle struct {
	center r2.Point
	radius float64
}

// NewObstacle creates an obstacle. The radius must be positive.
func NewObstacle(centerNorth, centerEast, radius float64) (Obstacle, error) {
	if math.IsNaN(centerNorth) || math.IsNaN(centerEast) || math.IsNaN(radius) {
		return Obstacle{}, NewConfigError("planner.Obstacle: coordinates must be numbers")
	}
	if radius <= 0 {
		return Obstacle{}, NewConfigError(fmt.Sprintf("planner.Obstacle: radius must be positive: %g given", radius))
	}
	return Obstacle{center: r2.Point{X: centerNorth, Y: centerEast}, radius: radius}, nil
}

// MustObstacle is like NewObstacle but panics on invalid input
func MustObstacle(centerNorth, centerEast, radius float64) Obstacle {
	o, err := NewObstacle(centerNorth, centerEast, radius)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Obstacle) Center() r2.Point { return o.center }
func (o Obstacle) CenterNorth() float64 { return o.center.X }
func (o Obstacle) CenterEast() float64 { return o.center.Y }
func (o Obstacle) Radius() float64 { return o.radius }

// Distance returns the planar distance from p to the obstacle center
func (o Obstacle) Distance(p r2.Point) float64 {
	return p.Sub(o.center).Norm()
}

// Contains reports whether p lies strictly inside the obstacle. A point on
// the boundary is outside.
func (o Obstacle) Contains(p r2.Point) bool {
	return o.Distance(p) < o.radius
}

func (o Obstacle) String() string {
	return fmt.Sprintf("obstacle(%.2f, %.2f, r=%.2f)", o.center.X, o.center.Y, o.radius)
}
