package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/drone-navigator/cmd/navigator/app"
	"github.com/roman-kulish/drone-navigator/internal/logging"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, modeName string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&modeName, "mode", string(app.ModeMission), "What to fly. [mission, orbit]")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	mode, err := app.ParseMode(modeName)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(logging.ParseLevel(config.Settings.LogLevel))
	logger, logFile := logging.New(os.Stdout, &logLevel, config.Settings.FileConfig)
	defer logFile.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, mode, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		_ = logFile.Close()
		os.Exit(1)
	}
}
