package domain

import (
	"context"
	"time"
)

// ReadingRepository defines operations for storing/retrieving readings
// This is a PORT - adapters (SQLite, Memory) will implement it
type ReadingRepository interface {
	// SaveReading persists a reading
	SaveReading(ctx context.Context, reading *LightReading) error

	// GetReading retrieves a specific reading by ID
	GetReading(ctx context.Context, id int64) (*LightReading, error)

	// GetReadingsInRange retrieves all readings of a channel within time range.
	// Uses a half-open interval: inclusive start, exclusive end [start, end).
	GetReadingsInRange(ctx context.Context, channel ChannelID, start, end time.Time) ([]*LightReading, error)

	// GetLatestReading retrieves the most recent reading of a channel
	GetLatestReading(ctx context.Context, channel ChannelID) (*LightReading, error)

	// DeleteOldReadings removes readings older than specified duration
	DeleteOldReadings(ctx context.Context, olderThan time.Duration) error
}
