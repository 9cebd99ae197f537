package mavlink

import (
	"errors"
	"math"
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

func TestPositionTarget(t *testing.T) {
	msg := positionTarget(1500, 1, 1, vehicle.PositionSetpoint{North: 10, East: -2.5, Down: -3, Yaw: 90})

	if msg.CoordinateFrame != common.MAV_FRAME_LOCAL_NED {
		t.Errorf("Expected LOCAL_NED frame, got %v", msg.CoordinateFrame)
	}
	if msg.X != 10 || msg.Y != -2.5 || msg.Z != -3 {
		t.Errorf("Unexpected position (%v, %v, %v)", msg.X, msg.Y, msg.Z)
	}
	if math.Abs(float64(msg.Yaw)-math.Pi/2) > 1e-6 {
		t.Errorf("Expected yaw pi/2, got %v", msg.Yaw)
	}
	if msg.TypeMask&common.POSITION_TARGET_TYPEMASK_X_IGNORE != 0 {
		t.Error("Position must not be ignored in a position setpoint")
	}
	if msg.TypeMask&common.POSITION_TARGET_TYPEMASK_VX_IGNORE == 0 {
		t.Error("Velocity must be ignored in a position setpoint")
	}
}

func TestVelocityTarget(t *testing.T) {
	msg := velocityTarget(0, 1, 1, vehicle.VelocitySetpoint{North: 1, East: 2, Down: -0.5})

	if msg.Vx != 1 || msg.Vy != 2 || msg.Vz != -0.5 {
		t.Errorf("Unexpected velocity (%v, %v, %v)", msg.Vx, msg.Vy, msg.Vz)
	}
	if msg.TypeMask&common.POSITION_TARGET_TYPEMASK_X_IGNORE == 0 {
		t.Error("Position must be ignored in a velocity setpoint")
	}
	if msg.TypeMask&common.POSITION_TARGET_TYPEMASK_VX_IGNORE != 0 {
		t.Error("Velocity must not be ignored in a velocity setpoint")
	}
}

func TestCommandLong(t *testing.T) {
	msg := commandLong(1, 2, common.MAV_CMD_NAV_TAKEOFF, 0, 0, 0, 0, 0, 0, 3)

	if msg.Command != common.MAV_CMD_NAV_TAKEOFF {
		t.Errorf("Unexpected command %v", msg.Command)
	}
	if msg.Param7 != 3 || msg.Param1 != 0 {
		t.Errorf("Unexpected params %v / %v", msg.Param1, msg.Param7)
	}
	if msg.TargetSystem != 1 || msg.TargetComponent != 2 {
		t.Errorf("Unexpected target %d/%d", msg.TargetSystem, msg.TargetComponent)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{"udp server", Config{Endpoint: EndpointUDPServer, Address: ":14540"}, false},
		{"serial", Config{Endpoint: EndpointSerial, Address: "/dev/ttyACM0"}, false},
		{"missing address", Config{Endpoint: EndpointUDPServer}, true},
		{"unknown endpoint", Config{Endpoint: "carrier-pigeon", Address: "x"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conf.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}

			var cfgErr *vehicle.ConfigError
			if err != nil && !errors.As(err, &cfgErr) {
				t.Errorf("Expected *vehicle.ConfigError, got %T", err)
			}
		})
	}
}
