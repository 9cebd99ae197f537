package storage

import (
	_ "embed"
)

const (
	insertMissionSQL = `
INSERT INTO missions (
                      start_time,
                      name,
                      config)
VALUES (?, ?, ?)`

	updateAvoidanceCountSQL = `
UPDATE missions
SET avoidance_count = ?
WHERE
    id = ?`

	selectMissionSQL = `
SELECT
    id,
    start_time,
    name,
    avoidance_count,
    config
FROM missions
WHERE
    id = ?`

	selectMissionsSQL = `
SELECT
    id,
    start_time,
    name,
    avoidance_count,
    config
FROM missions
ORDER BY start_time, id`

	insertObstacleSQL = `
INSERT INTO obstacles (mission_id,
                       idx,
                       center_north,
                       center_east,
                       radius)
VALUES (?, ?, ?, ?, ?)`

	selectObstaclesSQL = `
SELECT
    center_north,
    center_east,
    radius
FROM obstacles
WHERE
    mission_id = ?
ORDER BY idx`

	insertEventSQL = `
INSERT INTO events (
                    mission_id,
                    timestamp,
                    north,
                    east,
                    down,
                    event,
                    waypoint_index,
                    target_north,
                    target_east)
VALUES `

	selectEventsSQL = `
SELECT
    timestamp,
    north,
    east,
    down,
    event,
    waypoint_index,
    target_north,
    target_east
FROM events
WHERE
    mission_id = ?
    AND (? IS NULL OR event = ?)
    AND (? IS NULL OR timestamp >= ?)
    AND (? IS NULL OR timestamp <= ?)
ORDER BY id`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_events_mission ON events (mission_id, id);
CREATE INDEX IF NOT EXISTS idx_missions_start ON missions (start_time);`
)

//go:embed schema.sql
var initSchemaSQL string
