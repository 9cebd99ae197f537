package planner

import (
	"fmt"

	"github.com/roman-kulish/drone-navigator/internal/ned"
)

// Area is a north/east aligned rectangle
type Area struct {
	NorthMin float64 `yaml:"northMin" json:"northMin"`
	NorthMax float64 `yaml:"northMax" json:"northMax"`
	EastMin  float64 `yaml:"eastMin" json:"eastMin"`
	EastMax  float64 `yaml:"eastMax" json:"eastMax"`
}

// Lawnmower generates a boustrophedon sweep of the area: strips run along
// east at north = NorthMin, NorthMin+stripWidth, ... while north <= NorthMax,
// alternating direction. Every waypoint is at the given down coordinate.
func Lawnmower(area Area, stripWidth, down float64) ([]ned.Waypoint, error) {
	if stripWidth <= 0 {
		return nil, NewConfigError(fmt.Sprintf("planner.Lawnmower: strip width must be positive: %g given", stripWidth))
	}
	if area.NorthMax < area.NorthMin {
		return nil, NewConfigError("planner.Lawnmower: north max must not be less than north min")
	}

	var waypoints []ned.Waypoint
	flip := false
	for north := area.NorthMin; north <= area.NorthMax; north += stripWidth {
		from, to := area.EastMin, area.EastMax
		if flip {
			from, to = to, from
		}
		waypoints = append(waypoints,
			ned.Waypoint{North: north, East: from, Down: down},
			ned.Waypoint{North: north, East: to, Down: down},
		)
		flip = !flip
	}

	return waypoints, nil
}
