package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/pkg/luxapi"
)

// LiveValues exposes what the display currently shows for a channel
type LiveValues interface {
	Current(channel domain.ChannelID) (domain.Status, error)
}

// LightServiceHandler implements the gRPC LightService
type LightServiceHandler struct {
	luxapi.UnimplementedLightServiceServer
	repo     domain.ReadingRepository
	live     LiveValues
	channels map[domain.ChannelID]bool
}

// NewLightServiceHandler creates a new gRPC handler serving the given channels.
// live may be nil, in which case current values come from history only.
func NewLightServiceHandler(repo domain.ReadingRepository, live LiveValues, channels []domain.ChannelID) *LightServiceHandler {
	served := make(map[domain.ChannelID]bool, len(channels))
	for _, ch := range channels {
		served[ch] = true
	}
	return &LightServiceHandler{
		repo:     repo,
		live:     live,
		channels: served,
	}
}

func (h *LightServiceHandler) channel(name string) (domain.ChannelID, error) {
	ch := domain.ChannelID(name)
	if !h.channels[ch] {
		return "", status.Errorf(codes.InvalidArgument, "%v: %q", domain.ErrUnknownChannel, name)
	}
	return ch, nil
}

// GetCurrentLight returns the live value of a channel
func (h *LightServiceHandler) GetCurrentLight(ctx context.Context, req *luxapi.GetCurrentLightRequest) (*luxapi.GetCurrentLightResponse, error) {
	log.Debug().Str("channel", req.Channel).Msg("GetCurrentLight called")

	ch, err := h.channel(req.Channel)
	if err != nil {
		return nil, err
	}

	var shown *domain.Status
	if h.live != nil {
		st, err := h.live.Current(ch)
		switch {
		case err == nil && st.HasValue:
			return &luxapi.GetCurrentLightResponse{
				Reading: &luxapi.LightReading{
					Channel:   ch.String(),
					Lux:       st.Value,
					Timestamp: st.UpdatedAt.Unix(),
					Category:  domain.CategoryFor(st.Value),
				},
				Available: st.Available,
				Message:   st.Message,
			}, nil
		case err == nil:
			// Not responding since before the first publish
			shown = &st
		case !errors.Is(err, domain.ErrReadingNotFound):
			log.Error().Err(err).Str("channel", ch.String()).Msg("failed to get live value")
			return nil, status.Error(codes.Internal, "failed to get live value")
		}
	}

	// Nothing published yet (e.g. right after a restart): fall back to history
	reading, err := h.repo.GetLatestReading(ctx, ch)
	if errors.Is(err, domain.ErrReadingNotFound) {
		return nil, status.Errorf(codes.NotFound, "no value for channel %q yet", ch)
	} else if err != nil {
		log.Error().Err(err).Str("channel", ch.String()).Msg("failed to get latest reading")
		return nil, status.Error(codes.Internal, "failed to get reading")
	}

	resp := &luxapi.GetCurrentLightResponse{
		Reading:   convertReadingToAPI(reading),
		Available: true,
	}
	if shown != nil {
		resp.Available = shown.Available
		resp.Message = shown.Message
	}
	return resp, nil
}

// GetHistory returns readings within time range with statistics
func (h *LightServiceHandler) GetHistory(ctx context.Context, req *luxapi.GetHistoryRequest) (*luxapi.GetHistoryResponse, error) {
	log.Debug().
		Str("channel", req.Channel).
		Int64("start", req.StartTime).
		Int64("end", req.EndTime).
		Msg("GetHistory called")

	ch, err := h.channel(req.Channel)
	if err != nil {
		return nil, err
	}
	if req.EndTime < req.StartTime {
		return nil, status.Error(codes.InvalidArgument, "end_time before start_time")
	}

	start := time.Unix(req.StartTime, 0)
	end := time.Unix(req.EndTime, 0)

	readings, err := h.repo.GetReadingsInRange(ctx, ch, start, end)
	if err != nil {
		log.Error().Err(err).Msg("failed to get readings")
		return nil, status.Error(codes.Internal, "failed to get readings")
	}

	apiReadings := make([]*luxapi.LightReading, len(readings))
	for i, r := range readings {
		apiReadings[i] = convertReadingToAPI(r)
	}

	stats := calculateStatistics(readings)

	return &luxapi.GetHistoryResponse{
		Readings:   apiReadings,
		AverageLux: stats.average,
		MinLux:     stats.min,
		MaxLux:     stats.max,
	}, nil
}

// RecordReading manually records a history entry
func (h *LightServiceHandler) RecordReading(ctx context.Context, req *luxapi.RecordReadingRequest) (*luxapi.RecordReadingResponse, error) {
	log.Info().Str("channel", req.Channel).Float64("lux", req.Lux).Msg("RecordReading called")

	ch, err := h.channel(req.Channel)
	if err != nil {
		return nil, err
	}

	reading, err := domain.NewLightReading(ch, req.Lux)
	if err != nil {
		log.Error().Err(err).Msg("invalid lux value")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := h.repo.SaveReading(ctx, reading); err != nil {
		log.Error().Err(err).Msg("failed to save reading")
		return nil, status.Error(codes.Internal, "failed to save reading")
	}

	return &luxapi.RecordReadingResponse{
		Reading: convertReadingToAPI(reading),
	}, nil
}

func convertReadingToAPI(r *domain.LightReading) *luxapi.LightReading {
	return &luxapi.LightReading{
		Id:        r.ID,
		Channel:   r.Channel.String(),
		Lux:       r.Lux,
		Timestamp: r.Timestamp.Unix(),
		Category:  r.LightCategory(),
	}
}

type statistics struct {
	average float64
	min     float64
	max     float64
}

func calculateStatistics(readings []*domain.LightReading) statistics {
	if len(readings) == 0 {
		return statistics{}
	}

	var sum float64
	min := readings[0].Lux
	max := readings[0].Lux

	for _, r := range readings {
		sum += r.Lux
		if r.Lux < min {
			min = r.Lux
		}
		if r.Lux > max {
			max = r.Lux
		}
	}

	return statistics{
		average: sum / float64(len(readings)),
		min:     min,
		max:     max,
	}
}
