package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// ReadingRepository implements domain.ReadingRepository with in-memory storage
// This is perfect for development - no database setup needed
type ReadingRepository struct {
	mu       sync.RWMutex
	readings map[int64]*domain.LightReading
	nextID   int64
}

// NewReadingRepository creates an empty in-memory repository
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{
		readings: make(map[int64]*domain.LightReading),
		nextID:   1,
	}
}

// SaveReading stores a copy of the reading in memory
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *domain.LightReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Assign ID if not set
	if reading.ID == 0 {
		reading.ID = r.nextID
		r.nextID++
	}

	stored := *reading
	r.readings[reading.ID] = &stored
	return nil
}

// GetReading retrieves a reading by ID
func (r *ReadingRepository) GetReading(ctx context.Context, id int64) (*domain.LightReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, exists := r.readings[id]
	if !exists {
		return nil, domain.ErrReadingNotFound
	}

	out := *reading
	return &out, nil
}

// GetReadingsInRange returns the channel's readings in [start, end)
func (r *ReadingRepository) GetReadingsInRange(ctx context.Context, channel domain.ChannelID, start, end time.Time) ([]*domain.LightReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*domain.LightReading
	for _, reading := range r.readings {
		if reading.Channel != channel {
			continue
		}
		if !reading.Timestamp.Before(start) && reading.Timestamp.Before(end) {
			out := *reading
			results = append(results, &out)
		}
	}

	// Sort by timestamp, then insertion order
	sort.Slice(results, func(i, j int) bool {
		if results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].ID < results[j].ID
		}
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	return results, nil
}

// GetLatestReading returns the most recent reading of a channel
func (r *ReadingRepository) GetLatestReading(ctx context.Context, channel domain.ChannelID) (*domain.LightReading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.LightReading
	for _, reading := range r.readings {
		if reading.Channel != channel {
			continue
		}
		if latest == nil || reading.Timestamp.After(latest.Timestamp) ||
			(reading.Timestamp.Equal(latest.Timestamp) && reading.ID > latest.ID) {
			latest = reading
		}
	}

	if latest == nil {
		return nil, domain.ErrReadingNotFound
	}

	out := *latest
	return &out, nil
}

// DeleteOldReadings removes readings older than specified duration
func (r *ReadingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)

	for id, reading := range r.readings {
		if reading.Timestamp.Before(cutoff) {
			delete(r.readings, id)
		}
	}

	return nil
}
