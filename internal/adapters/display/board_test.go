package display

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/quentinrf/luxpipe/internal/domain"
)

func servingStatus(t *testing.T, hs *health.Server, channel domain.ChannelID) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthService(channel)})
	require.NoError(t, err)
	return resp.Status
}

func TestBoard_EmptyChannel(t *testing.T) {
	b := NewBoard(nil)

	_, err := b.Current(domain.ChannelALS)
	require.ErrorIs(t, err, domain.ErrReadingNotFound)
}

func TestBoard_PublishThenFailure(t *testing.T) {
	hs := health.NewServer()
	b := NewBoard(hs)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	pub := domain.Publication{Channel: domain.ChannelALS, Value: 321, Timestamp: now}
	require.NoError(t, b.UpdateCurrentValue(ctx, domain.AvailableStatus(pub)))

	status, err := b.Current(domain.ChannelALS)
	require.NoError(t, err)
	require.True(t, status.Available)
	require.True(t, status.HasValue)
	require.Equal(t, 321.0, status.Value)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, hs, domain.ChannelALS))

	failure := domain.UnavailableStatus(domain.ChannelALS, errors.New("remote I/O error"), now.Add(time.Second))
	require.NoError(t, b.UpdateCurrentValue(ctx, failure))

	status, err = b.Current(domain.ChannelALS)
	require.NoError(t, err)
	require.False(t, status.Available)
	require.Equal(t, 321.0, status.Value, "last value is kept")
	require.True(t, status.HasValue)
	require.Equal(t, "remote I/O error", status.Message)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, hs, domain.ChannelALS))
}

func TestBoard_ChannelsIndependent(t *testing.T) {
	b := NewBoard(nil)
	ctx := context.Background()

	require.NoError(t, b.UpdateCurrentValue(ctx, domain.UnavailableStatus(domain.ChannelWhite, nil, time.Now())))

	_, err := b.Current(domain.ChannelALS)
	require.ErrorIs(t, err, domain.ErrReadingNotFound)

	white, err := b.Current(domain.ChannelWhite)
	require.NoError(t, err)
	require.False(t, white.Available)
	require.Equal(t, domain.ErrSensorUnavailable.Error(), white.Message)
}

func TestBoard_MarkUnavailableBeforeFirstValue(t *testing.T) {
	hs := health.NewServer()
	b := NewBoard(hs)
	at := time.Unix(1700000000, 0)

	require.NoError(t, b.MarkUnavailable(context.Background(), domain.ChannelWhite, nil, at))

	status, err := b.Current(domain.ChannelWhite)
	require.NoError(t, err)
	require.False(t, status.Available)
	require.False(t, status.HasValue)
	require.Zero(t, status.Value)
	require.Equal(t, domain.ErrSensorUnavailable.Error(), status.Message)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, hs, domain.ChannelWhite))
}

func TestBoard_RepeatedFailuresBeforeFirstValue(t *testing.T) {
	b := NewBoard(nil)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.MarkUnavailable(ctx, domain.ChannelALS, errors.New("remote I/O error"), at.Add(time.Duration(i)*time.Second)))
	}

	status, err := b.Current(domain.ChannelALS)
	require.NoError(t, err)
	require.False(t, status.HasValue)

	pub := domain.Publication{Channel: domain.ChannelALS, Value: 42, Timestamp: at.Add(5 * time.Second)}
	require.NoError(t, b.UpdateCurrentValue(ctx, domain.AvailableStatus(pub)))
	require.NoError(t, b.MarkUnavailable(ctx, domain.ChannelALS, nil, at.Add(6*time.Second)))

	status, err = b.Current(domain.ChannelALS)
	require.NoError(t, err)
	require.False(t, status.Available)
	require.True(t, status.HasValue)
	require.Equal(t, 42.0, status.Value)
}
