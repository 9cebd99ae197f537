package planner

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// CoincidenceEpsilon is the distance below which a position is treated as
// sitting on the obstacle center, where no bypass direction exists.
const CoincidenceEpsilon = 1e-4

// AvoidancePlanner computes a single bypass point around a conflicting obstacle
type AvoidancePlanner struct {
	safetyMargin float64
}

// NewAvoidancePlanner creates a planner with a non-negative safety margin
func NewAvoidancePlanner(safetyMargin float64) (*AvoidancePlanner, error) {
	if safetyMargin < 0 {
		return nil, NewConfigError(fmt.Sprintf("planner.AvoidancePlanner: safety margin must not be negative: %g given", safetyMargin))
	}
	return &AvoidancePlanner{safetyMargin: safetyMargin}, nil
}

func (a *AvoidancePlanner) SafetyMargin() float64 {
	return a.safetyMargin
}

// AvoidPoint returns the point on the circle of radius (obstacle radius +
// safety margin) around the obstacle, rotated 90 degrees counter-clockwise
// from the center->position direction. The turn is always to the left and
// ignores the direction of travel.
//
// The second result is false when p coincides with the obstacle center.
func (a *AvoidancePlanner) AvoidPoint(p r2.Point, o Obstacle) (r2.Point, bool) {
	v := p.Sub(o.center)
	d := v.Norm()
	if d < CoincidenceEpsilon {
		return r2.Point{}, false
	}

	left := v.Mul(1 / d).Ortho()
	return o.center.Add(left.Mul(o.radius + a.safetyMargin)), true
}
