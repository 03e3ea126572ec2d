// Package veml6030 drives the Vishay VEML6030 ambient light sensor over a
// Linux i2c-dev adapter.
package veml6030

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// Bus reads and writes 16-bit SMBus words of one device.
type Bus interface {
	ReadWord(reg uint8) (uint16, error)
	WriteWord(reg uint8, value uint16) error
	Close() error
}

// Sensor implements ports.LightSensor.
type Sensor struct {
	mu         sync.Mutex
	bus        Bus
	resolution float64
}

// Open opens the adapter, selects the device and powers it on with
// DefaultConfig.
func Open(adapter string, address uint16) (*Sensor, error) {
	bus, err := openBus(adapter, address)
	if err != nil {
		return nil, err
	}

	s, err := New(bus, DefaultConfig)
	if err != nil {
		bus.Close()
		return nil, err
	}

	applied, err := s.ReadConfig()
	if err != nil {
		s.Close()
		return nil, err
	}
	if applied != DefaultConfig {
		log.Warn().
			Str("adapter", adapter).
			Uint16("address", address).
			Interface("config", applied).
			Msg("VEML6030 configuration did not read back as written")
	}

	psMode, psEnabled, err := s.PowerSaving()
	if err != nil {
		s.Close()
		return nil, err
	}

	log.Info().
		Str("adapter", adapter).
		Uint16("address", address).
		Float64("resolution", s.resolution).
		Uint16("ps_mode", psMode).
		Bool("ps_enabled", psEnabled).
		Msg("initialized VEML6030")
	return s, nil
}

// New configures the device behind bus.
func New(bus Bus, cfg Config) (*Sensor, error) {
	resolution, err := Resolution(cfg.Gain, cfg.Integration)
	if err != nil {
		return nil, domain.NewSensorError(domain.SensorErrInvalid, "unsupported configuration", err)
	}

	if err := bus.WriteWord(regConfig, cfg.word()); err != nil {
		return nil, domain.NewSensorError(domain.SensorErrI2C, "could not configure VEML6030", err)
	}

	return &Sensor{bus: bus, resolution: resolution}, nil
}

// ReadLux reads the channel's register and converts counts to lux.
func (s *Sensor) ReadLux(ctx context.Context, channel domain.ChannelID) (float64, error) {
	var reg uint8
	switch channel {
	case domain.ChannelALS:
		reg = regALS
	case domain.ChannelWhite:
		reg = regWhite
	default:
		return 0, domain.NewSensorError(domain.SensorErrInvalid, "unknown channel "+channel.String(), domain.ErrUnknownChannel)
	}

	if err := ctx.Err(); err != nil {
		return 0, domain.NewSensorError(domain.SensorErrI2C, "read cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return 0, domain.NewSensorError(domain.SensorErrDevice, "sensor closed", nil)
	}

	counts, err := s.bus.ReadWord(reg)
	if err != nil {
		return 0, domain.NewSensorError(domain.SensorErrI2C, fmt.Sprintf("could not read %s register", channel), err)
	}

	return float64(counts) * s.resolution, nil
}

// ReadConfig reads back the configuration register.
func (s *Sensor) ReadConfig() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return Config{}, domain.NewSensorError(domain.SensorErrDevice, "sensor closed", nil)
	}

	w, err := s.bus.ReadWord(regConfig)
	if err != nil {
		return Config{}, domain.NewSensorError(domain.SensorErrI2C, "could not read configuration", err)
	}
	return decodeConfig(w), nil
}

// PowerSaving reads the power saving register: mode bits and enable flag.
func (s *Sensor) PowerSaving() (mode uint16, enabled bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return 0, false, domain.NewSensorError(domain.SensorErrDevice, "sensor closed", nil)
	}

	w, err := s.bus.ReadWord(regPowerSaving)
	if err != nil {
		return 0, false, domain.NewSensorError(domain.SensorErrI2C, "could not read power saving settings", err)
	}
	return w & 0x0006, w&0x0001 != 0, nil
}

// Close shuts the sensor down and releases the adapter.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus = nil
	return err
}
