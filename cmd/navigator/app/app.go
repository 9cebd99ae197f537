package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/drone-navigator/internal/clock"
	"github.com/roman-kulish/drone-navigator/internal/control"
	"github.com/roman-kulish/drone-navigator/internal/metrics"
	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
	"github.com/roman-kulish/drone-navigator/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Run connects the vehicle and flies the selected mode. The metrics endpoint,
// when configured, is served for the duration of the flight.
func Run(ctx context.Context, config *Config, mode Mode, logger *slog.Logger) error {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}

	var srv *http.Server
	if config.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv = &http.Server{Addr: config.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving metrics: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer shutdown(srv, logger)
		return fly(gctx, config, mode, clock.Real{}, collector, logger)
	})

	return g.Wait()
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn(fmt.Sprintf("shutting down metrics server: %s", err.Error()))
	}
}

func fly(ctx context.Context, config *Config, mode Mode, clk clock.Clock, collector *metrics.Collector, logger *slog.Logger) error {
	v, err := newVehicle(ctx, &config.Vehicle, clk, logger)
	if err != nil {
		return err
	}
	defer v.Close()

	ctrl := control.NewController(v,
		control.WithLogger(logger),
		control.WithClock(clk),
		control.WithMetrics(collector),
		control.WithDelays(config.Delays),
		control.WithDefaultDown(config.Mission.Down()),
	)

	switch mode {
	case ModeOrbit:
		return flyOrbit(ctx, config, ctrl, logger)
	default:
		return flyMission(ctx, config, ctrl, collector, logger)
	}
}

func flyMission(ctx context.Context, config *Config, ctrl *control.Controller, collector *metrics.Collector, logger *slog.Logger) error {
	waypoints, err := config.Mission.Plan()
	if err != nil {
		return fmt.Errorf("planning mission: %w", err)
	}
	obstacles, err := BuildObstacles(config.Obstacles)
	if err != nil {
		return fmt.Errorf("configuring obstacles: %w", err)
	}
	detector, err := planner.NewDetector(obstacles)
	if err != nil {
		return fmt.Errorf("creating detector: %w", err)
	}
	avoider, err := planner.NewAvoidancePlanner(config.Avoidance.SafetyMargin)
	if err != nil {
		return fmt.Errorf("creating avoidance planner: %w", err)
	}

	runner := mission.NewRunner(ctrl, ctrl.Vehicle(), detector, avoider,
		mission.WithLogger(logger),
		mission.WithClock(ctrl.Clock()),
		mission.WithMetrics(collector),
		mission.WithConfig(config.Mission.Config),
	)

	started := ctrl.Clock().Now()
	down := config.Mission.Down()

	if err = takeoff(ctx, ctrl, config.Mission.Altitude); err != nil {
		return err
	}
	if err = ctrl.StartOffboard(ctx, down); err != nil {
		return err
	}

	flightErr := runner.Run(ctx, waypoints)
	if flightErr == nil {
		logger.Info("returning home")
		flightErr = ctrl.Goto(ctx, config.Mission.HomePosition(), config.Mission.TransitSpeed, config.Mission.TickInterval)
	} else {
		logger.Error(fmt.Sprintf("mission aborted: %s; landing", flightErr.Error()))
	}

	// the vehicle is brought down even when the mission failed
	landCtx := context.WithoutCancel(ctx)
	if err = ctrl.StopOffboard(landCtx); err != nil {
		flightErr = errors.Join(flightErr, err)
	}
	if err = ctrl.Land(landCtx); err != nil {
		flightErr = errors.Join(flightErr, err)
	}

	logger.Info("flight finished",
		slog.String("duration", ctrl.Clock().Now().Sub(started).Round(time.Second).String()),
		slog.Int("avoidance_count", runner.AvoidanceCount()),
		slog.Int("events", len(runner.Events())))

	if err = persist(landCtx, &config.Storage, started, config, obstacles, runner, logger); err != nil {
		return errors.Join(flightErr, fmt.Errorf("persisting mission log: %w", err))
	}
	return flightErr
}

func flyOrbit(ctx context.Context, config *Config, ctrl *control.Controller, logger *slog.Logger) error {
	orbit, err := control.NewOrbitController(ctrl, config.Orbit.OrbitConfig)
	if err != nil {
		return err
	}

	if err = takeoff(ctx, ctrl, config.Orbit.Altitude); err != nil {
		return err
	}
	if err = ctrl.StartOffboardVelocity(ctx); err != nil {
		return err
	}

	result, flightErr := orbit.Run(ctx)
	if flightErr != nil {
		logger.Error(fmt.Sprintf("orbit aborted: %s; landing", flightErr.Error()))
	}

	landCtx := context.WithoutCancel(ctx)
	if err = ctrl.StopOffboard(landCtx); err != nil {
		flightErr = errors.Join(flightErr, err)
	}
	if err = ctrl.Land(landCtx); err != nil {
		flightErr = errors.Join(flightErr, err)
	}

	if result != nil {
		logger.Info("orbit finished",
			slog.Bool("hoverReached", result.HoverReached),
			slog.Float64("sweepDeg", ned.Heading(result.Sweep)),
			slog.Group("ticks",
				slog.Int(control.PhaseApproach.String(), result.Ticks[control.PhaseApproach]),
				slog.Int(control.PhaseStabilize.String(), result.Ticks[control.PhaseStabilize]),
				slog.Int(control.PhaseEntry.String(), result.Ticks[control.PhaseEntry]),
				slog.Int(control.PhaseOrbit.String(), result.Ticks[control.PhaseOrbit]),
			))
	}
	return flightErr
}

func takeoff(ctx context.Context, ctrl *control.Controller, altitude float64) error {
	if err := ctrl.Arm(ctx); err != nil {
		return err
	}
	return ctrl.Takeoff(ctx, altitude)
}

func persist(ctx context.Context, config *StorageConfig, started time.Time, appConfig *Config, obstacles []planner.Obstacle, runner *mission.Runner, logger *slog.Logger) error {
	dbPath, err := databasePath(config)
	if err != nil {
		return err
	}

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	missionID, err := store.CreateMission(ctx, started, string(ModeMission), &appConfig.Mission)
	if err != nil {
		return fmt.Errorf("creating mission: %w", err)
	}
	if err = store.StoreObstacles(ctx, missionID, obstacles); err != nil {
		return fmt.Errorf("storing obstacles: %w", err)
	}

	events := runner.Events()
	if err = store.StoreEvents(ctx, missionID, runner.AvoidanceCount(), events); err != nil {
		return fmt.Errorf("storing events: %w", err)
	}
	logger.Info("mission log saved", slog.String("database", dbPath), slog.Int64("missionID", missionID))

	if config.CSV != "" {
		if err = storage.WriteCSVFile(config.CSV, events); err != nil {
			return err
		}
		logger.Info("mission log saved", slog.String("csv", config.CSV))
	}
	return nil
}

func databasePath(config *StorageConfig) (string, error) {
	dir := config.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating storage directory '%s': %w", dir, err)
		}
	case err != nil:
		return "", fmt.Errorf("checking storage directory '%s': %w", dir, err)
	case !stat.IsDir():
		return "", fmt.Errorf("invalid storage directory '%s'", dir)
	}

	name := config.Database
	if name == "" {
		name = defaultDatabase
	}
	return filepath.Join(dir, name), nil
}
