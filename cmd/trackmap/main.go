// Command trackmap renders a stored mission log as an image: the flown track,
// the obstacles with their safety margins and the logged mission events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/drone-navigator/cmd/trackmap/app"
)

func main() {
	// stdout stays free for piping; progress goes to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	config, err := app.NewConfigFromCLI()
	if err != nil {
		logger.Error(fmt.Sprintf("invalid arguments: %s", err.Error()))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(fmt.Sprintf("rendering track map: %s", err.Error()), slog.String("output", config.OutputFile))

		stop()
		os.Exit(1)
	}
}
