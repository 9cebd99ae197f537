package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/drone-navigator/internal/control"
	"github.com/roman-kulish/drone-navigator/internal/logging"
	"github.com/roman-kulish/drone-navigator/internal/mission"
	"github.com/roman-kulish/drone-navigator/internal/ned"
	"github.com/roman-kulish/drone-navigator/internal/planner"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/mavlink"
	"github.com/roman-kulish/drone-navigator/internal/vehicle/sim"
)

const (
	VehicleSim     VehicleType = "sim"
	VehicleMAVLink VehicleType = "mavlink"

	ModeMission Mode = "mission"
	ModeOrbit   Mode = "orbit"

	defaultDatabase = "missions.sqlite"
)

type VehicleType string

// Mode selects what the navigator flies
type Mode string

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeMission, ModeOrbit:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode '%s'", s)
	}
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings         `yaml:"settings"`
	Vehicle   VehicleConfig    `yaml:"vehicle"`
	Mission   MissionConfig    `yaml:"mission"`
	Avoidance AvoidanceConfig  `yaml:"avoidance"`
	Obstacles []ObstacleConfig `yaml:"obstacles"`
	Orbit     OrbitConfig      `yaml:"orbit"`
	Delays    control.Delays   `yaml:"delays"`
	Storage   StorageConfig    `yaml:"storage"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel           string `yaml:"logLevel"`
	logging.FileConfig `yaml:",inline"`
}

// VehicleConfig selects and configures the vehicle backend
type VehicleConfig struct {
	Type    VehicleType    `yaml:"type"`
	MAVLink mavlink.Config `yaml:"mavlink"`
	Sim     SimConfig      `yaml:"sim"`
}

// SimConfig configures the simulated vehicle
type SimConfig struct {
	MaxSpeed     float64       `yaml:"maxSpeed"`
	FeedInterval time.Duration `yaml:"feedInterval"`
	Start        ned.Position  `yaml:"start"`
}

// MissionConfig describes the coverage mission. Waypoints, when given,
// replace the generated lawnmower pattern.
type MissionConfig struct {
	Area           planner.Area    `yaml:"area" json:"area"`
	StripWidth     float64         `yaml:"stripWidth" json:"stripWidth"`
	Altitude       float64         `yaml:"altitude" json:"altitude"` // meters above origin
	Home           *ned.Position   `yaml:"home" json:"home,omitempty"`
	Waypoints      []ned.Waypoint  `yaml:"waypoints" json:"waypoints,omitempty"`
	mission.Config `yaml:",inline" json:"-"`
}

// AvoidanceConfig configures the avoidance planner
type AvoidanceConfig struct {
	SafetyMargin float64 `yaml:"safetyMargin"`
}

// ObstacleConfig is a circular no-fly zone
type ObstacleConfig struct {
	North  float64 `yaml:"north" json:"north"`
	East   float64 `yaml:"east" json:"east"`
	Radius float64 `yaml:"radius" json:"radius"`
}

// OrbitConfig configures the orbit maneuver. When World is set the center is
// given in simulator world coordinates instead of the local frame.
type OrbitConfig struct {
	control.OrbitConfig `yaml:",inline"`
	World               *WorldTarget `yaml:"world"`
}

// WorldTarget is a point in simulator world coordinates (x east, y north)
// together with the world position of the local frame origin.
type WorldTarget struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	OffsetX float64 `yaml:"offsetX"`
	OffsetY float64 `yaml:"offsetY"`
}

// Local converts the target to local north and east.
func (w WorldTarget) Local() (north, east float64) {
	return w.Y - w.OffsetY, w.X - w.OffsetX
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	Database      string `yaml:"database"`
	CSV           string `yaml:"csv"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// NewConfig returns a configuration with defaults for every optional setting.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Vehicle: VehicleConfig{
			Type: VehicleSim,
			MAVLink: mavlink.Config{
				Endpoint: mavlink.EndpointUDPServer,
				Address:  ":14540",
			},
			Sim: SimConfig{
				MaxSpeed:     sim.DefaultMaxSpeed,
				FeedInterval: sim.DefaultFeedInterval,
			},
		},
		Mission: MissionConfig{
			Area:       planner.Area{NorthMax: 20, EastMax: 10},
			StripWidth: 5,
			Altitude:   -control.DefaultDown,
			Config:     mission.DefaultConfig(),
		},
		Avoidance: AvoidanceConfig{SafetyMargin: 3},
		Orbit:     OrbitConfig{OrbitConfig: control.DefaultOrbitConfig()},
		Delays:    control.DefaultDelays(),
		Storage:   StorageConfig{DataDirectory: "data", Database: defaultDatabase},
	}
}

// LoadConfig reads the YAML configuration at path over the defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := NewConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if w := config.Orbit.World; w != nil {
		config.Orbit.CenterNorth, config.Orbit.CenterEast = w.Local()
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error

	switch c.Vehicle.Type {
	case VehicleSim:
		if c.Vehicle.Sim.MaxSpeed <= 0 {
			errs = append(errs, errors.New("vehicle.sim.maxSpeed must be positive"))
		}
	case VehicleMAVLink:
		if err := c.Vehicle.MAVLink.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("vehicle.mavlink: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vehicle type '%s'", c.Vehicle.Type))
	}

	if c.Mission.Altitude <= 0 {
		errs = append(errs, errors.New("mission.altitude must be positive"))
	}
	if len(c.Mission.Waypoints) == 0 && c.Mission.StripWidth <= 0 {
		errs = append(errs, errors.New("mission.stripWidth must be positive"))
	}
	if c.Mission.TransitSpeed <= 0 || c.Mission.AvoidSpeed <= 0 {
		errs = append(errs, errors.New("mission speeds must be positive"))
	}
	if c.Mission.TickInterval <= 0 {
		errs = append(errs, errors.New("mission.tickInterval must be positive"))
	}
	if c.Avoidance.SafetyMargin < 0 {
		errs = append(errs, errors.New("avoidance.safetyMargin must not be negative"))
	}
	for i, o := range c.Obstacles {
		if o.Radius <= 0 {
			errs = append(errs, fmt.Errorf("obstacles[%d].radius must be positive", i))
		}
	}
	if err := c.Orbit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("orbit: %w", err))
	}

	return errors.Join(errs...)
}

// Down returns the mission flight level as a down coordinate.
func (m *MissionConfig) Down() float64 {
	return -m.Altitude
}

// HomePosition returns where the vehicle returns after the mission.
func (m *MissionConfig) HomePosition() ned.Position {
	if m.Home != nil {
		return *m.Home
	}
	return ned.Position{Down: m.Down()}
}

// Plan returns the configured waypoints or the lawnmower sweep of the area.
func (m *MissionConfig) Plan() ([]ned.Waypoint, error) {
	if len(m.Waypoints) > 0 {
		return m.Waypoints, nil
	}
	return planner.Lawnmower(m.Area, m.StripWidth, m.Down())
}

// BuildObstacles converts the configured obstacles, preserving order.
func BuildObstacles(configs []ObstacleConfig) ([]planner.Obstacle, error) {
	obstacles := make([]planner.Obstacle, 0, len(configs))
	for i, c := range configs {
		o, err := planner.NewObstacle(c.North, c.East, c.Radius)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		obstacles = append(obstacles, o)
	}
	return obstacles, nil
}
