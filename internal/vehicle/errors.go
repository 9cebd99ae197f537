package vehicle

import "errors"

var (
	// ErrConnectTimeout is returned when the vehicle did not report as
	// connected within the configured bound
	ErrConnectTimeout = errors.New("connection timeout")

	// ErrOffboardRejected is returned when the vehicle refuses to enter offboard mode
	ErrOffboardRejected = errors.New("offboard mode rejected")

	// ErrCommandRejected is returned when the vehicle denies a lifecycle command
	ErrCommandRejected = errors.New("command rejected")
)

// ConfigError is a custom error type for vehicle configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
