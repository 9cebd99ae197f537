package planner

import (
	"testing"

	"github.com/roman-kulish/drone-navigator/internal/ned"
)

func TestLawnmower(t *testing.T) {
	got, err := Lawnmower(Area{NorthMin: 0, NorthMax: 20, EastMin: 0, EastMax: 10}, 5, -3)
	if err != nil {
		t.Fatalf("Lawnmower failed: %v", err)
	}

	want := []ned.Waypoint{
		{North: 0, East: 0, Down: -3}, {North: 0, East: 10, Down: -3},
		{North: 5, East: 10, Down: -3}, {North: 5, East: 0, Down: -3},
		{North: 10, East: 0, Down: -3}, {North: 10, East: 10, Down: -3},
		{North: 15, East: 10, Down: -3}, {North: 15, East: 0, Down: -3},
		{North: 20, East: 0, Down: -3}, {North: 20, East: 10, Down: -3},
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d waypoints, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Waypoint %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestLawnmower_PartialLastStrip(t *testing.T) {
	got, err := Lawnmower(Area{NorthMin: 0, NorthMax: 12, EastMin: -5, EastMax: 5}, 5, -4)
	if err != nil {
		t.Fatalf("Lawnmower failed: %v", err)
	}

	// strips at 0, 5 and 10; 15 is beyond the area
	if len(got) != 6 {
		t.Fatalf("Expected 6 waypoints, got %d", len(got))
	}
	if last := got[len(got)-1]; last.North != 10 || last.East != 5 {
		t.Errorf("Unexpected last waypoint %+v", last)
	}
}

func TestLawnmower_SingleStrip(t *testing.T) {
	got, err := Lawnmower(Area{NorthMin: 3, NorthMax: 3, EastMin: 0, EastMax: 8}, 5, -3)
	if err != nil {
		t.Fatalf("Lawnmower failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 waypoints, got %d", len(got))
	}
}

func TestLawnmower_InvalidInput(t *testing.T) {
	testCases := []struct {
		name  string
		area  Area
		width float64
	}{
		{"zero strip width", Area{NorthMax: 10, EastMax: 10}, 0},
		{"negative strip width", Area{NorthMax: 10, EastMax: 10}, -1},
		{"inverted area", Area{NorthMin: 10, NorthMax: 0, EastMax: 10}, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Lawnmower(tc.area, tc.width, -3); err == nil {
				t.Error("Expected error for invalid parameters")
			}
		})
	}
}
