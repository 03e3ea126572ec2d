// Package display keeps the live value of every channel and mirrors channel
// availability into the gRPC health service.
package display

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// HealthService is the health-check service name of a channel.
func HealthService(channel domain.ChannelID) string {
	return "luxpipe." + channel.String()
}

// Board implements ports.DisplaySink.
type Board struct {
	mu       sync.RWMutex
	statuses map[domain.ChannelID]domain.Status
	health   *health.Server
}

// NewBoard creates an empty board. hs may be nil.
func NewBoard(hs *health.Server) *Board {
	return &Board{
		statuses: make(map[domain.ChannelID]domain.Status),
		health:   hs,
	}
}

// UpdateCurrentValue records status. An unavailable status keeps the last
// published value, if any, but flags it as not responding.
func (b *Board) UpdateCurrentValue(ctx context.Context, status domain.Status) error {
	b.mu.Lock()
	if status.Available {
		status.HasValue = true
	} else {
		status.Value, status.HasValue = 0, false
		if prev, ok := b.statuses[status.Channel]; ok && prev.HasValue {
			status.Value, status.HasValue = prev.Value, true
		}
	}
	b.statuses[status.Channel] = status
	b.mu.Unlock()

	if b.health != nil {
		serving := healthpb.HealthCheckResponse_NOT_SERVING
		if status.Available {
			serving = healthpb.HealthCheckResponse_SERVING
		}
		b.health.SetServingStatus(HealthService(status.Channel), serving)
	}
	return nil
}

// Current returns the live status of a channel, or domain.ErrReadingNotFound
// before anything was shown for it. A channel that failed before its first
// publish has a status with HasValue false.
func (b *Board) Current(channel domain.ChannelID) (domain.Status, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status, ok := b.statuses[channel]
	if !ok {
		return domain.Status{}, domain.ErrReadingNotFound
	}
	return status, nil
}

// MarkUnavailable shows channel as not responding.
func (b *Board) MarkUnavailable(ctx context.Context, channel domain.ChannelID, cause error, at time.Time) error {
	return b.UpdateCurrentValue(ctx, domain.UnavailableStatus(channel, cause, at))
}
