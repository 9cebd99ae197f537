package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError is deferred right after BeginTx; after a successful
// commit the rollback is a no-op and reports sql.ErrTxDone.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toConfigData(config any) (data sql.NullString, err error) {
	if config == nil {
		return
	}

	switch v := config.(type) {
	case string:
		data.String = v

	case []byte:
		data.String = string(v)

	default:
		var p []byte
		if p, err = json.Marshal(config); err != nil {
			return data, fmt.Errorf("marshaling config: %w", err)
		}
		data.String = string(p)
	}

	data.Valid = true
	return
}

func toEventData(missionID int64, e *mission.Event) *eventData {
	return &eventData{
		MissionID:     missionID,
		Timestamp:     e.Timestamp.UTC(),
		North:         e.Position.North,
		East:          e.Position.East,
		Down:          e.Position.Down,
		Event:         string(e.Kind),
		WaypointIndex: e.WaypointIndex,
		TargetNorth:   e.TargetNorth,
		TargetEast:    e.TargetEast,
	}
}

func fromEventData(d *eventData) *mission.Event {
	return &mission.Event{
		Timestamp:     d.Timestamp.UTC(),
		Position:      ned.Position{North: d.North, East: d.East, Down: d.Down},
		Kind:          mission.EventKind(d.Event),
		WaypointIndex: d.WaypointIndex,
		TargetNorth:   d.TargetNorth,
		TargetEast:    d.TargetEast,
	}
}

func fromMissionData(d *missionData) *Mission {
	m := Mission{
		ID:             d.ID,
		StartTime:      d.StartTime.UTC(),
		Name:           d.Name,
		AvoidanceCount: d.AvoidanceCount,
	}
	if d.Config.Valid {
		m.Config = &d.Config.String
	}
	return &m
}
