package storage

import (
	"database/sql"
	"time"
)

// Mission is the stored header of a mission run.
type Mission struct {
	ID             int64
	StartTime      time.Time
	Name           string
	AvoidanceCount int
	Config         *string
}

type missionData struct {
	ID             int64
	StartTime      time.Time
	Name           string
	AvoidanceCount int
	Config         sql.NullString
}

type eventData struct {
	MissionID     int64
	Timestamp     time.Time
	North         float64
	East          float64
	Down          float64
	Event         string
	WaypointIndex int
	TargetNorth   float64
	TargetEast    float64
}
