package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/roman-kulish/drone-navigator/internal/ned"
)

// ErrFeedClosed is returned when the position feed has ended.
var ErrFeedClosed = errors.New("telemetry feed closed")

// Provider is an unbounded stream of telemetry samples. Every call to Next
// blocks until a fresh sample is available and consumes it; providers keep
// at most one pending sample.
type Provider interface {
	Next(ctx context.Context) (*Telemetry, error)
}

// ReadPosition consumes one sample and returns its position.
func ReadPosition(ctx context.Context, p Provider) (ned.Position, error) {
	t, err := p.Next(ctx)
	if err != nil {
		return ned.Position{}, fmt.Errorf("reading position: %w", err)
	}
	if t == nil {
		return ned.Position{}, fmt.Errorf("reading position: %w", ErrFeedClosed)
	}
	return t.Position, nil
}
