package mission

import (
	"time"

	"github.com/roman-kulish/drone-navigator/internal/ned"
)

// EventKind names a mission log entry.
type EventKind string

const (
	EventPreWaypointCheck EventKind = "pre_waypoint_check"
	EventAvoidedAtStart   EventKind = "avoided_at_start"
	EventReachedWaypoint  EventKind = "reached_waypoint"
)

// Event is one row of the mission log: where the vehicle was, what happened
// and which waypoint it was flying to. WaypointIndex is 1-based.
type Event struct {
	Timestamp     time.Time
	Position      ned.Position
	Kind          EventKind
	WaypointIndex int
	TargetNorth   float64
	TargetEast    float64
}
