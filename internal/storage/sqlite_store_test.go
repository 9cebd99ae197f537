package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testEvents(n int) []mission.Event {
	kinds := []mission.EventKind{mission.EventPreWaypointCheck, mission.EventAvoidedAtStart, mission.EventReachedWaypoint}

	events := make([]mission.Event, n)
	for i := range events {
		events[i] = mission.Event{
			Timestamp:     epoch.Add(time.Duration(i) * 250 * time.Millisecond),
			Position:      ned.Position{North: float64(i), East: float64(i) / 2, Down: -3},
			Kind:          kinds[i%len(kinds)],
			WaypointIndex: i/len(kinds) + 1,
			TargetNorth:   float64(i + 1),
			TargetEast:    10,
		}
	}
	return events
}

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "missions.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestSqliteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMission(ctx, epoch, "mission", map[string]any{"stripWidth": 5})
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}

	obstacles := []planner.Obstacle{planner.MustObstacle(5, 10, 2), planner.MustObstacle(7, 15, 2)}
	if err = s.StoreObstacles(ctx, id, obstacles); err != nil {
		t.Fatalf("StoreObstacles() error = %v", err)
	}

	events := testEvents(7)
	if err = s.StoreEvents(ctx, id, 2, events); err != nil {
		t.Fatalf("StoreEvents() error = %v", err)
	}

	m, err := s.Mission(ctx, id)
	if err != nil {
		t.Fatalf("Mission() error = %v", err)
	}
	if m.Name != "mission" || m.AvoidanceCount != 2 || !m.StartTime.Equal(epoch) {
		t.Errorf("Mission() = %+v", m)
	}
	if m.Config == nil || *m.Config != `{"stripWidth":5}` {
		t.Errorf("Mission().Config = %v", m.Config)
	}

	gotObstacles, err := s.Obstacles(ctx, id)
	if err != nil {
		t.Fatalf("Obstacles() error = %v", err)
	}
	if len(gotObstacles) != len(obstacles) {
		t.Fatalf("got %d obstacles, want %d", len(gotObstacles), len(obstacles))
	}
	for i := range obstacles {
		if gotObstacles[i] != obstacles[i] {
			t.Errorf("obstacle %d = %v, want %v", i, gotObstacles[i], obstacles[i])
		}
	}

	r, err := s.ReadEvents(ctx, id)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	defer r.Close()

	if r.Mission().ID != id {
		t.Errorf("reader mission ID = %d, want %d", r.Mission().ID, id)
	}

	got, err := ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i := range events {
		assertEvent(t, got[i], events[i])
	}
}

func TestSqliteStoreManyEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMission(ctx, epoch, "large", nil)
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}

	events := testEvents(2*eventsPerStatement + 17)
	if err = s.StoreEvents(ctx, id, 0, events); err != nil {
		t.Fatalf("StoreEvents() error = %v", err)
	}

	r, err := s.ReadEvents(ctx, id)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	defer r.Close()

	got, err := ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	assertEvent(t, got[len(got)-1], events[len(events)-1])
}

func TestSqliteEventReaderFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMission(ctx, epoch, "filters", nil)
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}
	events := testEvents(9)
	if err = s.StoreEvents(ctx, id, 0, events); err != nil {
		t.Fatalf("StoreEvents() error = %v", err)
	}

	tests := []struct {
		name string
		opts []ReaderOption
		want int
	}{
		{"all", nil, 9},
		{"by kind", []ReaderOption{WithEventKind(mission.EventReachedWaypoint)}, 3},
		{"start time", []ReaderOption{WithStartTime(epoch.Add(time.Second))}, 5},
		{"time range", []ReaderOption{WithTimeRange(epoch.Add(250*time.Millisecond), epoch.Add(750*time.Millisecond))}, 3},
		{"kind and time", []ReaderOption{WithEventKind(mission.EventPreWaypointCheck), WithEndTime(epoch.Add(time.Second))}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.ReadEvents(ctx, id, tt.opts...)
			if err != nil {
				t.Fatalf("ReadEvents() error = %v", err)
			}
			defer r.Close()

			got, err := ReadAll(ctx, r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSqliteEventReaderInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMission(ctx, epoch, "invalid", nil)
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}

	if _, err = s.ReadEvents(ctx, id, WithTimeRange(epoch.Add(time.Second), epoch)); err == nil {
		t.Error("ReadEvents() with inverted range: want error")
	}
	if _, err = s.ReadEvents(ctx, id+100); err == nil {
		t.Error("ReadEvents() for unknown mission: want error")
	}
	if _, err = s.ReadEvents(ctx, 0); err == nil {
		t.Error("ReadEvents() with zero ID: want error")
	}
}

func TestSqliteEventReaderCancelled(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateMission(context.Background(), epoch, "cancel", nil)
	if err != nil {
		t.Fatalf("CreateMission() error = %v", err)
	}
	if err = s.StoreEvents(context.Background(), id, 0, testEvents(3)); err != nil {
		t.Fatalf("StoreEvents() error = %v", err)
	}

	r, err := s.ReadEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if r.Next(ctx) {
		t.Fatal("Next() = true on a cancelled context")
	}
	if !errors.Is(r.Error(), context.Canceled) {
		t.Errorf("Error() = %v, want %v", r.Error(), context.Canceled)
	}
}

func TestSqliteStoreMissions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, name := range []string{"second", "first"} {
		if _, err := s.CreateMission(ctx, epoch.Add(-time.Duration(i)*time.Hour), name, nil); err != nil {
			t.Fatalf("CreateMission() error = %v", err)
		}
	}

	missions, err := s.Missions(ctx)
	if err != nil {
		t.Fatalf("Missions() error = %v", err)
	}
	if len(missions) != 2 || missions[0].Name != "first" || missions[1].Name != "second" {
		t.Errorf("Missions() not ordered by start time: %+v", missions)
	}
	if missions[0].Config != nil {
		t.Errorf("Config = %q, want nil", *missions[0].Config)
	}
}

func assertEvent(t *testing.T, got, want mission.Event) {
	t.Helper()

	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp = %s, want %s", got.Timestamp, want.Timestamp)
	}
	got.Timestamp, want.Timestamp = time.Time{}, time.Time{}
	if got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}
