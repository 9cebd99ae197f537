// Package mavlink connects to a PX4 vehicle over MAVLink and exposes it as a
// vehicle.Vehicle: LOCAL_POSITION_NED becomes the position feed and offboard
// setpoints are sent as SET_POSITION_TARGET_LOCAL_NED.
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/telemetry"
	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

// WithLogger sets the logger for the link
func WithLogger(logger *slog.Logger) func(*Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("vehicle", "mavlink"))
	}
}

// Link is a MAVLink connection to a single vehicle
type Link struct {
	conf   Config
	node   *gomavlib.Node
	logger *slog.Logger
	boot   time.Time

	targetSystem    byte
	targetComponent byte

	positions chan *telemetry.Telemetry // holds at most the latest sample
	acks      chan *common.MessageCommandAck
	connected chan struct{}
	localized chan struct{}
	done      chan struct{}

	connectOnce  sync.Once
	localizeOnce sync.Once
	closeOnce    sync.Once
	wg          sync.WaitGroup
}

var _ vehicle.Vehicle = (*Link)(nil)

// Dial opens the MAVLink endpoint and waits for the first vehicle heartbeat
// and the first LOCAL_POSITION_NED sample. If either is missing when the
// connect timeout expires the link is closed and vehicle.ErrConnectTimeout is
// returned.
func Dial(ctx context.Context, conf Config, options ...func(*Link)) (*Link, error) {
	conf.setDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:           []gomavlib.EndpointConf{conf.endpoint()},
		Dialect:             common.Dialect,
		OutVersion:          gomavlib.V2,
		OutSystemID:         conf.SystemID,
		StreamRequestEnable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mavlink node: %w", err)
	}

	l := Link{
		conf:      conf,
		node:      node,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		boot:      time.Now(),
		positions: make(chan *telemetry.Telemetry, 1),
		acks:      make(chan *common.MessageCommandAck, 8),
		connected: make(chan struct{}),
		localized: make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, option := range options {
		option(&l)
	}

	l.wg.Add(1)
	go l.readEvents()

	l.logger.Info("connecting...", slog.String("endpoint", string(conf.Endpoint)), slog.String("address", conf.Address))

	waitCtx, cancel := context.WithTimeout(ctx, conf.ConnectTimeout)
	defer cancel()

	if err = l.await(waitCtx, l.connected, "no heartbeat"); err != nil {
		return nil, err
	}
	l.logger.Info("connected, waiting for local position...", slog.Int("systemID", int(l.targetSystem)))

	if err = l.await(waitCtx, l.localized, "no local position"); err != nil {
		return nil, err
	}
	l.logger.Info("local position received")
	return &l, nil
}

// await blocks until ch is closed. On expiry of ctx the link is closed.
func (l *Link) await(ctx context.Context, ch <-chan struct{}, missing string) error {
	select {
	case <-ch:
		return nil

	case <-ctx.Done():
		_ = l.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s (%s)", vehicle.ErrConnectTimeout, missing, l.conf.ConnectTimeout, l.conf.Address)
		}
		return ctx.Err()
	}
}

func (l *Link) readEvents() {
	defer l.wg.Done()
	defer close(l.done)

	for evt := range l.node.Events() {
		frm, ok := evt.(*gomavlib.EventFrame)
		if !ok {
			continue
		}

		switch msg := frm.Message().(type) {
		case *common.MessageHeartbeat:
			l.connectOnce.Do(func() {
				l.targetSystem = frm.SystemID()
				l.targetComponent = frm.ComponentID()
				close(l.connected)
			})

		case *common.MessageLocalPositionNed:
			l.publish(&telemetry.Telemetry{
				Timestamp: time.Now(),
				Position: ned.Position{
					North: float64(msg.X),
					East:  float64(msg.Y),
					Down:  float64(msg.Z),
				},
				Velocity: &telemetry.Velocity{
					North: float64(msg.Vx),
					East:  float64(msg.Vy),
					Down:  float64(msg.Vz),
				},
			})

		case *common.MessageCommandAck:
			select {
			case l.acks <- msg:
			default:
				l.logger.Warn("dropping command ack", slog.Int("command", int(msg.Command)))
			}
		}
	}
}

// publish replaces any unread sample with t
func (l *Link) publish(t *telemetry.Telemetry) {
	select {
	case <-l.positions:
	default:
	}
	l.positions <- t
	l.localizeOnce.Do(func() { close(l.localized) })
}

// Next blocks until a fresh LOCAL_POSITION_NED sample arrives
func (l *Link) Next(ctx context.Context) (*telemetry.Telemetry, error) {
	select {
	case t := <-l.positions:
		return t, nil
	case <-l.done:
		return nil, telemetry.ErrFeedClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Link) bootMs() uint32 {
	return uint32(time.Since(l.boot).Milliseconds())
}

func (l *Link) SetPosition(_ context.Context, sp vehicle.PositionSetpoint) error {
	if err := l.node.WriteMessageAll(positionTarget(l.bootMs(), l.targetSystem, l.targetComponent, sp)); err != nil {
		return fmt.Errorf("writing position setpoint: %w", err)
	}
	return nil
}

func (l *Link) SetVelocity(_ context.Context, sp vehicle.VelocitySetpoint) error {
	if err := l.node.WriteMessageAll(velocityTarget(l.bootMs(), l.targetSystem, l.targetComponent, sp)); err != nil {
		return fmt.Errorf("writing velocity setpoint: %w", err)
	}
	return nil
}

// command sends a COMMAND_LONG and waits for the matching acknowledgement
func (l *Link) command(ctx context.Context, cmd common.MAV_CMD, params ...float32) error {
	// drop stale acks from earlier commands
	for len(l.acks) > 0 {
		<-l.acks
	}

	if err := l.node.WriteMessageAll(commandLong(l.targetSystem, l.targetComponent, cmd, params...)); err != nil {
		return fmt.Errorf("writing command %d: %w", cmd, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.conf.CommandTimeout)
	defer cancel()

	for {
		select {
		case ack := <-l.acks:
			if ack.Command != cmd {
				continue
			}
			if ack.Result != common.MAV_RESULT_ACCEPTED {
				return fmt.Errorf("%w: command %d result %d", vehicle.ErrCommandRejected, cmd, ack.Result)
			}
			return nil

		case <-l.done:
			return telemetry.ErrFeedClosed

		case <-ctx.Done():
			return fmt.Errorf("waiting for command %d ack: %w", cmd, ctx.Err())
		}
	}
}

func (l *Link) Arm(ctx context.Context) error {
	return l.command(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, 1)
}

func (l *Link) Disarm(ctx context.Context) error {
	return l.command(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, 0)
}

func (l *Link) Takeoff(ctx context.Context, altitude float64) error {
	return l.command(ctx, common.MAV_CMD_NAV_TAKEOFF, 0, 0, 0, 0, 0, 0, float32(altitude))
}

func (l *Link) Land(ctx context.Context) error {
	return l.command(ctx, common.MAV_CMD_NAV_LAND)
}

func (l *Link) StartOffboard(ctx context.Context) error {
	if err := l.command(ctx, common.MAV_CMD_DO_SET_MODE, customModeEnabled, px4ModeOffboard); err != nil {
		return fmt.Errorf("%w: %w", vehicle.ErrOffboardRejected, err)
	}
	return nil
}

// StopOffboard switches the vehicle to AUTO.LOITER so it holds position
func (l *Link) StopOffboard(ctx context.Context) error {
	return l.command(ctx, common.MAV_CMD_DO_SET_MODE, customModeEnabled, px4ModeAuto, px4SubModeLoiter)
}

// Close closes the node and waits for the event reader to exit
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.node.Close()
		l.wg.Wait()
	})
	return nil
}
