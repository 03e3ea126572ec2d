package domain

import "time"

// Status is what the live-value display shows for a channel.
type Status struct {
	Channel   ChannelID
	Value     float64
	HasValue  bool // false until the channel's first publish
	Available bool
	Message   string // failure message when not available
	UpdatedAt time.Time
}

// AvailableStatus builds the status for a published value.
func AvailableStatus(pub Publication) Status {
	return Status{
		Channel:   pub.Channel,
		Value:     pub.Value,
		HasValue:  true,
		Available: true,
		UpdatedAt: pub.Timestamp,
	}
}

// UnavailableStatus builds the "sensor unavailable" status for a failed read.
func UnavailableStatus(channel ChannelID, cause error, at time.Time) Status {
	msg := ErrSensorUnavailable.Error()
	if cause != nil {
		msg = cause.Error()
	}
	return Status{
		Channel:   channel,
		Available: false,
		Message:   msg,
		UpdatedAt: at,
	}
}
