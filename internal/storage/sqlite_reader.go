package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/mission"
)

// EventReader provides an iterator-based interface for reading a mission
// event log with optional kind and time filtering.
type EventReader interface {
	// Mission returns the header of the mission this reader is accessing.
	Mission() *Mission

	// Next advances the iterator and returns true if there is another event
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current event in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *mission.Event

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures an EventReader with specific filtering criteria.
type ReaderOption func(*SqliteEventReader)

// WithEventKind keeps only events of the given kind.
func WithEventKind(kind mission.EventKind) ReaderOption {
	return func(r *SqliteEventReader) {
		k := string(kind)
		r.kind = &k
	}
}

// WithStartTime excludes events recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteEventReader) {
		t = t.UTC()
		r.startTime = &t
	}
}

// WithEndTime excludes events recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteEventReader) {
		t = t.UTC()
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteEventReader) {
		WithStartTime(startTime)(r)
		WithEndTime(endTime)(r)
	}
}

// SqliteEventReader implements EventReader for SQLite database backend.
type SqliteEventReader struct {
	db *sql.DB

	missionID int64
	mission   *Mission

	kind      *string    // Optional event kind filter
	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *mission.Event
	rows    *sql.Rows
	err     error
}

var _ EventReader = (*SqliteEventReader)(nil)

func newSqliteEventReader(ctx context.Context, db *sql.DB, missionID int64, opts ...ReaderOption) (*SqliteEventReader, error) {
	er := &SqliteEventReader{
		db:        db,
		missionID: missionID,
	}
	for _, opt := range opts {
		opt(er)
	}
	if err := er.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return er, nil
}

func (er *SqliteEventReader) init(ctx context.Context) error {
	if er.db == nil {
		return errors.New("database connection required")
	}
	if er.missionID <= 0 {
		return errors.New("mission ID required")
	}
	if er.startTime != nil && er.endTime != nil && er.startTime.After(*er.endTime) {
		return fmt.Errorf("start time %s is after end time %s", er.startTime, er.endTime)
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading mission", fn: er.loadMission},
		{msg: "initializing query", fn: er.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (er *SqliteEventReader) loadMission(ctx context.Context) (err error) {
	stmt, err := er.db.PrepareContext(ctx, selectMissionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var data missionData
	if err = stmt.QueryRowContext(ctx, er.missionID).Scan(&data.ID, &data.StartTime, &data.Name, &data.AvoidanceCount, &data.Config); err != nil {
		return fmt.Errorf("querying mission: %w", err)
	}

	er.mission = fromMissionData(&data)
	return
}

func (er *SqliteEventReader) initQuery(ctx context.Context) (err error) {
	er.rows, err = er.db.QueryContext(ctx, selectEventsSQL,
		er.missionID,
		er.kind, er.kind,
		er.startTime, er.startTime,
		er.endTime, er.endTime,
	)
	return err
}

func (er *SqliteEventReader) Mission() *Mission {
	return er.mission
}

func (er *SqliteEventReader) Next(ctx context.Context) bool {
	if er.err != nil || er.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		er.err = ctx.Err()
		return false
	default:
	}

	if !er.rows.Next() {
		er.current = nil
		return false
	}

	var data eventData
	if er.err = er.rows.Scan(
		&data.Timestamp,
		&data.North,
		&data.East,
		&data.Down,
		&data.Event,
		&data.WaypointIndex,
		&data.TargetNorth,
		&data.TargetEast,
	); er.err != nil {
		er.err = fmt.Errorf("scanning event: %w", er.err)
		return false
	}

	data.MissionID = er.missionID
	er.current = fromEventData(&data)
	return true
}

func (er *SqliteEventReader) Current() *mission.Event {
	return er.current
}

func (er *SqliteEventReader) Error() error {
	if er.err != nil {
		return er.err
	}
	if er.rows != nil {
		return er.rows.Err()
	}
	return nil
}

func (er *SqliteEventReader) Close() error {
	if er.rows != nil {
		err := er.rows.Close()
		er.current = nil
		er.rows = nil
		return err
	}
	return nil
}

// ReadAll drains r and returns the remaining events.
func ReadAll(ctx context.Context, r EventReader) ([]mission.Event, error) {
	var events []mission.Event
	for r.Next(ctx) {
		events = append(events, *r.Current())
	}
	if err := r.Error(); err != nil {
		return events, err
	}
	return events, nil
}
