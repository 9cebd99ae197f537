package mavlink

import (
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

// PX4 custom main modes used with MAV_CMD_DO_SET_MODE
const (
	customModeEnabled = 1 // MAV_MODE_FLAG_CUSTOM_MODE_ENABLED
	px4ModeAuto       = 4
	px4ModeOffboard   = 6
	px4SubModeLoiter  = 3
)

const ignoreVelocityAndAccel = common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE

const ignorePositionAndAccel = common.POSITION_TARGET_TYPEMASK_X_IGNORE |
	common.POSITION_TARGET_TYPEMASK_Y_IGNORE |
	common.POSITION_TARGET_TYPEMASK_Z_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE

func radians(deg float64) float32 {
	return float32(deg * math.Pi / 180)
}

func positionTarget(bootMs uint32, sys, comp byte, sp vehicle.PositionSetpoint) *common.MessageSetPositionTargetLocalNed {
	return &common.MessageSetPositionTargetLocalNed{
		TimeBootMs:      bootMs,
		TargetSystem:    sys,
		TargetComponent: comp,
		CoordinateFrame: common.MAV_FRAME_LOCAL_NED,
		TypeMask:        ignoreVelocityAndAccel,
		X:               float32(sp.North),
		Y:               float32(sp.East),
		Z:               float32(sp.Down),
		Yaw:             radians(sp.Yaw),
	}
}

func velocityTarget(bootMs uint32, sys, comp byte, sp vehicle.VelocitySetpoint) *common.MessageSetPositionTargetLocalNed {
	return &common.MessageSetPositionTargetLocalNed{
		TimeBootMs:      bootMs,
		TargetSystem:    sys,
		TargetComponent: comp,
		CoordinateFrame: common.MAV_FRAME_LOCAL_NED,
		TypeMask:        ignorePositionAndAccel,
		Vx:              float32(sp.North),
		Vy:              float32(sp.East),
		Vz:              float32(sp.Down),
		Yaw:             radians(sp.Yaw),
	}
}

func commandLong(sys, comp byte, cmd common.MAV_CMD, params ...float32) *common.MessageCommandLong {
	var p [7]float32
	copy(p[:], params)

	return &common.MessageCommandLong{
		TargetSystem:    sys,
		TargetComponent: comp,
		Command:         cmd,
		Param1:          p[0],
		Param2:          p[1],
		Param3:          p[2],
		Param4:          p[3],
		Param5:          p[4],
		Param6:          p[5],
		Param7:          p[6],
	}
}
