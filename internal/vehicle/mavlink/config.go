package mavlink

import (
	"fmt"
	"time"

	"github.com/bluenviron/gomavlib/v3"

	"github.com/roman-kulish/drone-navigator/internal/vehicle"
)

const (
	EndpointUDPServer EndpointType = "udp-server"
	EndpointUDPClient EndpointType = "udp-client"
	EndpointTCPClient EndpointType = "tcp-client"
	EndpointSerial    EndpointType = "serial"

	DefaultConnectTimeout = 15 * time.Second
	DefaultCommandTimeout = 3 * time.Second
	DefaultSystemID       = 245
)

type EndpointType string

// Config configures the MAVLink link to the vehicle
type Config struct {
	Endpoint EndpointType `yaml:"endpoint" json:"endpoint"` // Transport kind
	Address  string       `yaml:"address" json:"address"`   // host:port, or serial device path
	BaudRate int          `yaml:"baudRate" json:"baudRate"` // Serial only

	SystemID       byte          `yaml:"systemID" json:"systemID"`             // Our own system ID
	ConnectTimeout time.Duration `yaml:"connectTimeout" json:"connectTimeout"` // Bound for the first heartbeat
	CommandTimeout time.Duration `yaml:"commandTimeout" json:"commandTimeout"` // Bound for each COMMAND_ACK
}

func (c *Config) setDefaults() {
	if c.SystemID == 0 {
		c.SystemID = DefaultSystemID
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.Endpoint == EndpointSerial && c.BaudRate == 0 {
		c.BaudRate = 57600
	}
}

// Validate checks the endpoint settings
func (c *Config) Validate() error {
	if c.Address == "" {
		return vehicle.NewConfigError("mavlink.Config: address is required")
	}
	if c.ConnectTimeout < 0 || c.CommandTimeout < 0 {
		return vehicle.NewConfigError("mavlink.Config: timeouts must not be negative")
	}

	switch c.Endpoint {
	case EndpointUDPServer, EndpointUDPClient, EndpointTCPClient, EndpointSerial:
		return nil
	default:
		return vehicle.NewConfigError(fmt.Sprintf("mavlink.Config: unknown endpoint '%s'", c.Endpoint))
	}
}

func (c *Config) endpoint() gomavlib.EndpointConf {
	switch c.Endpoint {
	case EndpointUDPClient:
		return gomavlib.EndpointUDPClient{Address: c.Address}
	case EndpointTCPClient:
		return gomavlib.EndpointTCPClient{Address: c.Address}
	case EndpointSerial:
		return gomavlib.EndpointSerial{Device: c.Address, Baud: c.BaudRate}
	default:
		return gomavlib.EndpointUDPServer{Address: c.Address}
	}
}
