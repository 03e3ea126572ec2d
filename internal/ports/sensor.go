package ports

import (
	"context"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// LightSensor defines how to read light levels
// This is a PORT - adapters (VEML6030, Mock) will implement it
type LightSensor interface {
	// ReadLux returns the current light level of a channel in lux.
	// A failed read returns a *domain.SensorError.
	ReadLux(ctx context.Context, channel domain.ChannelID) (float64, error)

	// Close releases any resources
	Close() error
}
