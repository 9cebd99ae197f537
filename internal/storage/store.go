package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

// Store persists mission runs: a header per run, the obstacle field it was
// flown against and its event log.
type Store interface {
	// CreateMission registers a new mission run and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - startTime: When the run started
	//   - name: Free-form label, e.g. the flight mode
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - missionID: Unique identifier for the created mission
	//   - error: If creation fails or context is cancelled
	CreateMission(ctx context.Context, startTime time.Time, name string, config any) (missionID int64, err error)

	// Mission retrieves a mission header by its ID.
	Mission(ctx context.Context, id int64) (*Mission, error)

	// Missions returns all stored missions ordered by start time.
	Missions(ctx context.Context) ([]*Mission, error)

	// StoreObstacles saves the obstacle field of a mission, preserving order.
	StoreObstacles(ctx context.Context, missionID int64, obstacles []planner.Obstacle) error

	// Obstacles returns the obstacle field of a mission in configuration order.
	Obstacles(ctx context.Context, missionID int64) ([]planner.Obstacle, error)

	// StoreEvents saves the event log and the avoidance count of a mission.
	// All events are stored in a single atomic transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - missionID: ID of the mission the events belong to
	//   - avoidanceCount: Number of detours flown during the run
	//   - events: Mission log in the order it was recorded
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreEvents(ctx context.Context, missionID int64, avoidanceCount int, events []mission.Event) error

	// ReadEvents returns an iterator over the event log of a mission. The
	// reader must be closed after use.
	ReadEvents(ctx context.Context, missionID int64, opts ...ReaderOption) (EventReader, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
