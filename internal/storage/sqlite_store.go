package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

// eventsPerStatement keeps batch inserts below SQLite's bound parameter limit
const eventsPerStatement = 500

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened and the schema initialized on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateMission(ctx context.Context, startTime time.Time, name string, config any) (missionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertMissionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, startTime.UTC(), name, configData)
	if err != nil {
		err = fmt.Errorf("inserting mission: %w", err)
		return
	}

	missionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting mission ID: %w", err)
	}
	return
}

func (s *SqliteStore) Mission(ctx context.Context, id int64) (m *Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectMissionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data missionData
	if err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.StartTime, &data.Name, &data.AvoidanceCount, &data.Config); err != nil {
		err = fmt.Errorf("scanning mission: %w", err)
		return
	}

	return fromMissionData(&data), nil
}

func (s *SqliteStore) Missions(ctx context.Context) (missions []*Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMissionsSQL)
	if err != nil {
		err = fmt.Errorf("querying missions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data missionData
		if err = rows.Scan(&data.ID, &data.StartTime, &data.Name, &data.AvoidanceCount, &data.Config); err != nil {
			err = fmt.Errorf("scanning mission: %w", err)
			return
		}
		missions = append(missions, fromMissionData(&data))
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreObstacles(ctx context.Context, missionID int64, obstacles []planner.Obstacle) (err error) {
	if len(obstacles) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertObstacleSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for i, o := range obstacles {
		if _, err = stmt.ExecContext(ctx, missionID, i, o.CenterNorth(), o.CenterEast(), o.Radius()); err != nil {
			return fmt.Errorf("inserting obstacle %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Obstacles(ctx context.Context, missionID int64) (obstacles []planner.Obstacle, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectObstaclesSQL, missionID)
	if err != nil {
		err = fmt.Errorf("querying obstacles: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var north, east, radius float64
		if err = rows.Scan(&north, &east, &radius); err != nil {
			err = fmt.Errorf("scanning obstacle: %w", err)
			return
		}

		var o planner.Obstacle
		if o, err = planner.NewObstacle(north, east, radius); err != nil {
			err = fmt.Errorf("restoring obstacle: %w", err)
			return
		}
		obstacles = append(obstacles, o)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreEvents(ctx context.Context, missionID int64, avoidanceCount int, events []mission.Event) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if _, err = tx.ExecContext(ctx, updateAvoidanceCountSQL, avoidanceCount, missionID); err != nil {
		return fmt.Errorf("updating avoidance count: %w", err)
	}

	for start := 0; start < len(events); start += eventsPerStatement {
		end := min(start+eventsPerStatement, len(events))
		if err = insertEvents(ctx, tx, missionID, events[start:end]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, missionID int64, events []mission.Event) error {
	// Prepare values array
	values := make([]any, 0, len(events)*9)

	// Build batch insert query
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder

	sb.WriteString(insertEventSQL)

	for i := range events {
		data := toEventData(missionID, &events[i])
		values = append(values,
			data.MissionID,
			data.Timestamp,
			data.North,
			data.East,
			data.Down,
			data.Event,
			data.WaypointIndex,
			data.TargetNorth,
			data.TargetEast,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting events: %w", err)
	}
	return nil
}

// ReadEvents creates a new EventReader over the log of a mission. Events are
// returned in the order they were recorded.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - missionID: Unique identifier of the mission to read from
//   - opts: Optional filters (WithEventKind, WithTimeRange)
//
// The returned reader must be closed after use to release database resources.
func (s *SqliteStore) ReadEvents(ctx context.Context, missionID int64, opts ...ReaderOption) (EventReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteEventReader(ctx, db, missionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
