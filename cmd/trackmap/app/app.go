package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/storage"
)

var ErrNoMissions = errors.New("database holds no missions")

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	track, err := loadTrack(ctx, config, logger)
	if err != nil {
		return err
	}

	logger.Info("finished reading mission log",
		slog.Group("stats",
			slog.String("mission", track.Name),
			slog.String("start", track.StartTime.Local().Format(time.DateTime)),
			slog.Int("samples", track.Report.Samples),
			slog.String("duration", track.Report.TotalTime.String()),
			slog.String("distance", humanize.FtoaWithDigits(track.Report.TotalDistance, 2)+"m"),
			slog.Int("avoidances", track.Report.AvoidanceCount),
		))

	renderer, err := NewTrackRenderer(RenderConfig{
		Scale:         config.Scale,
		SafetyMargin:  config.SafetyMargin,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating track renderer: %w", err)
	}

	img, err := renderer.Render(track)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	logger.Info("writing track map",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return writeImage(config.OutputFile, config.Format, img)
}

func loadTrack(ctx context.Context, config *Config, logger *slog.Logger) (*TrackData, error) {
	if config.CSVPath != "" {
		events, err := storage.ReadCSVFile(config.CSVPath)
		if err != nil {
			return nil, err
		}

		obstacles, err := parseObstacles(config.Obstacles)
		if err != nil {
			return nil, err
		}
		return NewTrackData(filepath.Base(config.CSVPath), events, obstacles, config.SafetyMargin)
	}

	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return readMission(ctx, store, config.MissionID, config.SafetyMargin, logger)
}

// readMission loads mission id from the store, the latest mission when id is zero.
func readMission(ctx context.Context, store storage.Store, id int64, margin float64, logger *slog.Logger) (*TrackData, error) {
	if id == 0 {
		missions, err := store.Missions(ctx)
		if err != nil {
			return nil, err
		}
		if len(missions) == 0 {
			return nil, ErrNoMissions
		}
		id = missions[len(missions)-1].ID
	}

	logger.Info("reading mission", slog.Int64("missionID", id))

	reader, err := store.ReadEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	events, err := storage.ReadAll(ctx, reader)
	if err != nil {
		return nil, err
	}

	obstacles, err := store.Obstacles(ctx, id)
	if err != nil {
		return nil, err
	}

	m := reader.Mission()
	name := fmt.Sprintf("#%d %s", m.ID, m.Name)
	if logged := countAvoidances(events); logged != m.AvoidanceCount {
		logger.Warn("stored avoidance count differs from the event log",
			slog.Int("stored", m.AvoidanceCount),
			slog.Int("logged", logged))
	}

	return NewTrackData(name, events, obstacles, margin)
}

func countAvoidances(events []mission.Event) int {
	var n int
	for _, e := range events {
		if e.Kind == mission.EventAvoidedAtStart {
			n++
		}
	}
	return n
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
