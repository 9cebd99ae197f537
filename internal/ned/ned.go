package ned

import (
	"math"

	"github.com/golang/geo/r2"
)

// Position is a point in the local North-East-Down tangent frame, in meters.
// Down grows towards the ground, so a vehicle flying 3 m above the origin has Down = -3.
type Position struct {
	North float64 `json:"north" yaml:"north"`
	East  float64 `json:"east" yaml:"east"`
	Down  float64 `json:"down" yaml:"down"`
}

// Waypoint is a target position of a flight plan. Waypoints are flown in
// the order they appear in a plan.
type Waypoint = Position

// Horizontal projects the position onto the north/east plane. X is north, Y is east.
func (p Position) Horizontal() r2.Point {
	return r2.Point{X: p.North, Y: p.East}
}

// HorizontalDistance returns the planar distance between two positions.
func (p Position) HorizontalDistance(o Position) float64 {
	return p.Horizontal().Sub(o.Horizontal()).Norm()
}

// Altitude returns the height above the origin.
func (p Position) Altitude() float64 {
	return -p.Down
}

// FromHorizontal builds a position from a planar point and a down component.
func FromHorizontal(pt r2.Point, down float64) Position {
	return Position{North: pt.X, East: pt.Y, Down: down}
}

// Bearing returns the angle in radians of the vector from a to b, measured
// from north towards east.
func Bearing(a, b r2.Point) float64 {
	d := b.Sub(a)
	return math.Atan2(d.Y, d.X)
}

// Heading converts a bearing in radians to a yaw angle in degrees.
func Heading(bearing float64) float64 {
	return bearing * 180 / math.Pi
}
