package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// whiteRatio scales the white channel relative to ambient light; the white
// photodiode sees a broader spectrum so it reads higher indoors.
const whiteRatio = 1.2

// FakeSensor simulates a light sensor for development
// This implements the ports.LightSensor interface
type FakeSensor struct {
	mu          sync.Mutex
	rng         *rand.Rand
	baseValue   float64
	variation   float64
	failureRate float64
	closed      bool
}

// NewFakeSensor creates a sensor that returns realistic values
// baseValue: average ambient lux (e.g., 500 for indoor lighting)
// variation: +/- range (e.g., 100 means 400-600)
func NewFakeSensor(baseValue, variation float64) *FakeSensor {
	return &FakeSensor{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		baseValue: baseValue,
		variation: variation,
	}
}

// SetFailureRate makes a fraction of reads fail with an i2c error, in [0, 1]
func (s *FakeSensor) SetFailureRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureRate = rate
}

// ReadLux returns a simulated light reading
// Simulates realistic variance (lights flicker, clouds pass, etc.)
func (s *FakeSensor) ReadLux(ctx context.Context, channel domain.ChannelID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, domain.NewSensorError(domain.SensorErrDevice, "sensor closed", nil)
	}

	var base float64
	switch channel {
	case domain.ChannelALS:
		base = s.baseValue
	case domain.ChannelWhite:
		base = s.baseValue * whiteRatio
	default:
		return 0, domain.NewSensorError(domain.SensorErrInvalid, "unknown channel "+channel.String(), domain.ErrUnknownChannel)
	}

	if s.failureRate > 0 && s.rng.Float64() < s.failureRate {
		return 0, domain.NewSensorError(domain.SensorErrI2C, "simulated bus error", nil)
	}

	// Random value around base ± variation
	variance := (s.rng.Float64() - 0.5) * 2 * s.variation
	lux := base + variance

	// Ensure non-negative
	if lux < 0 {
		lux = 0
	}

	return lux, nil
}

// Close marks the sensor closed; later reads fail
func (s *FakeSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
