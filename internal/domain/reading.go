package domain

import (
	"time"
)

// LightReading represents a single averaged light measurement in the history log
type LightReading struct {
	ID        int64
	Channel   ChannelID
	Lux       float64
	Timestamp time.Time
}

// NewLightReading creates a new reading with validation
func NewLightReading(channel ChannelID, lux float64) (*LightReading, error) {
	// Business rule: Lux cannot be negative
	if lux < 0 {
		return nil, ErrInvalidLux
	}

	return &LightReading{
		Channel:   channel,
		Lux:       lux,
		Timestamp: time.Now().Truncate(time.Second),
	}, nil
}

// NewLightReadingFromPublication builds the history entry for a publish tick.
// History entries have unix-second resolution.
func NewLightReadingFromPublication(pub Publication) (*LightReading, error) {
	reading, err := NewLightReading(pub.Channel, pub.Value)
	if err != nil {
		return nil, err
	}
	reading.Timestamp = time.Unix(pub.Timestamp.Unix(), 0)
	return reading, nil
}

// IsLowLight returns true if reading indicates low light conditions
// Business logic: < 200 lux is considered low light
func (r *LightReading) IsLowLight() bool {
	return r.Lux < 200
}

// IsMediumLight returns true if reading indicates medium light
// Business logic: 200-2500 lux is medium light
func (r *LightReading) IsMediumLight() bool {
	return r.Lux >= 200 && r.Lux < 2500
}

// IsHighLight returns true if reading indicates high light
// Business logic: >= 2500 lux is high light
func (r *LightReading) IsHighLight() bool {
	return r.Lux >= 2500
}

// LightCategory returns human-readable category
func (r *LightReading) LightCategory() string {
	switch {
	case r.IsLowLight():
		return "Low Light"
	case r.IsMediumLight():
		return "Medium Light"
	default:
		return "High Light"
	}
}

// CategoryFor returns the human-readable category for a lux value
func CategoryFor(lux float64) string {
	r := LightReading{Lux: lux}
	return r.LightCategory()
}
