package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
)

var csvHeader = []string{"timestamp", "north_m", "east_m", "down_m", "event", "wp_index", "wp_x", "wp_y"}

// WriteCSV writes the event log as CSV with a header row. Timestamps are Unix
// seconds with microsecond fraction.
func WriteCSV(w io.Writer, events []mission.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(csvHeader))
	for i, e := range events {
		record[0] = formatTimestamp(e.Timestamp)
		record[1] = formatFloat(e.Position.North)
		record[2] = formatFloat(e.Position.East)
		record[3] = formatFloat(e.Position.Down)
		record[4] = string(e.Kind)
		record[5] = strconv.Itoa(e.WaypointIndex)
		record[6] = formatFloat(e.TargetNorth)
		record[7] = formatFloat(e.TargetEast)

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing event %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the event log to path, replacing any existing file.
func WriteCSVFile(path string, events []mission.Event) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return WriteCSV(f, events)
}

// ReadCSV parses an event log written by WriteCSV.
func ReadCSV(r io.Reader) ([]mission.Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected column %d: %q, want %q", i, header[i], name)
		}
	}

	var events []mission.Event
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}

		e, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
}

// ReadCSVFile parses the event log stored at path.
func ReadCSVFile(path string) (events []mission.Event, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return ReadCSV(f)
}

func parseRecord(record []string) (mission.Event, error) {
	var e mission.Event

	floats := make([]float64, 0, 6)
	for _, i := range []int{0, 1, 2, 3, 6, 7} {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return e, fmt.Errorf("parsing %s: %w", csvHeader[i], err)
		}
		floats = append(floats, v)
	}

	index, err := strconv.Atoi(record[5])
	if err != nil {
		return e, fmt.Errorf("parsing %s: %w", csvHeader[5], err)
	}

	e.Timestamp = parseTimestamp(floats[0])
	e.Position = ned.Position{North: floats[1], East: floats[2], Down: floats[3]}
	e.Kind = mission.EventKind(record[4])
	e.WaypointIndex = index
	e.TargetNorth = floats[4]
	e.TargetEast = floats[5]
	return e, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + fmt.Sprintf("%06d", t.Nanosecond()/int(time.Microsecond))
}

func parseTimestamp(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}
