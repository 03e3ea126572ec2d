package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLux indicates lux value is invalid
	ErrInvalidLux = errors.New("lux value cannot be negative")

	// ErrReadingNotFound indicates requested reading doesn't exist
	ErrReadingNotFound = errors.New("reading not found")

	// ErrSensorUnavailable indicates sensor cannot be read
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrUnknownChannel indicates a channel id the sensor does not produce
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNotConnected indicates the broker connection is down
	ErrNotConnected = errors.New("broker not connected")
)

// SensorErrorCode classifies sensor failures the way the driver reports them.
type SensorErrorCode int

const (
	SensorErrNone SensorErrorCode = iota
	SensorErrDevice
	SensorErrDriver
	SensorErrInvalid
	SensorErrI2C
)

func (c SensorErrorCode) String() string {
	switch c {
	case SensorErrNone:
		return "none"
	case SensorErrDevice:
		return "device"
	case SensorErrDriver:
		return "driver"
	case SensorErrInvalid:
		return "invalid"
	case SensorErrI2C:
		return "i2c"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// SensorError is the failed half of a sensor result. Message is only ever
// logged or shown, never interpreted.
type SensorError struct {
	Code    SensorErrorCode
	Message string
	Err     error
}

// NewSensorError creates a SensorError wrapping cause (which may be nil).
func NewSensorError(code SensorErrorCode, msg string, cause error) *SensorError {
	return &SensorError{Code: code, Message: msg, Err: cause}
}

func (e *SensorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor error %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("sensor error %s: %s", e.Code, e.Message)
}

func (e *SensorError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSensorUnavailable) match any sensor failure.
func (e *SensorError) Is(target error) bool {
	return target == ErrSensorUnavailable
}
