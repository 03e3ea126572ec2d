package ports

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/metrics"
)

const (
	// DefaultPollInterval is the sampling period
	DefaultPollInterval = time.Second

	// DefaultRetention is how long history entries are kept
	DefaultRetention = 30 * 24 * time.Hour

	cleanupInterval = 24 * time.Hour
)

// Poller samples every channel on a fixed interval and drives the
// averaging and dispatch pipeline
type Poller struct {
	sensor     LightSensor
	channels   []*domain.Channel
	display    DisplaySink
	dispatcher *Dispatcher
	interval   time.Duration
	metrics    *metrics.Metrics

	repo      domain.ReadingRepository
	retention time.Duration

	now func() time.Time
}

// NewPoller creates a poller over the given channel states
func NewPoller(sensor LightSensor, channels []*domain.Channel, display DisplaySink, dispatcher *Dispatcher, interval time.Duration, m *metrics.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		sensor:     sensor,
		channels:   channels,
		display:    display,
		dispatcher: dispatcher,
		interval:   interval,
		metrics:    m,
		now:        time.Now,
	}
}

// EnableRetention makes the poller prune history older than retention once a day
func (p *Poller) EnableRetention(repo domain.ReadingRepository, retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	p.repo = repo
	p.retention = retention
}

// Start begins periodic polling
// This runs in a goroutine until context is cancelled. A tick that is
// running when ctx is cancelled completes before Start returns.
func (p *Poller) Start(ctx context.Context) {
	log.Info().
		Dur("interval", p.interval).
		Int("channels", len(p.channels)).
		Msg("starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	// Poll immediately on start
	p.PollOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.PollOnce(ctx)

		case <-cleanupTicker.C:
			p.cleanup(ctx)

		case <-ctx.Done():
			log.Info().Msg("stopping poller")
			return
		}
	}
}

// PollOnce reads every channel once and feeds the pipeline.
func (p *Poller) PollOnce(ctx context.Context) {
	// Cancellation only stops the loop; a tick already under way finishes
	// so the window and sum stay consistent.
	ctx = context.WithoutCancel(ctx)
	now := p.now()

	for _, ch := range p.channels {
		p.pollChannel(ctx, ch, now)
	}
}

func (p *Poller) pollChannel(ctx context.Context, ch *domain.Channel, now time.Time) {
	channel := ch.ID().String()

	readCtx, cancel := context.WithTimeout(ctx, p.interval)
	lux, err := p.sensor.ReadLux(readCtx, ch.ID())
	cancel()

	if err == nil && (math.IsNaN(lux) || math.IsInf(lux, 0)) {
		err = domain.NewSensorError(domain.SensorErrInvalid, "non-finite reading", nil)
	}

	if err != nil {
		p.metrics.ReadFailuresTotal.WithLabelValues(channel).Inc()

		event := log.Error().Err(err).Str("channel", channel)
		var sensorErr *domain.SensorError
		if errors.As(err, &sensorErr) {
			event = event.Stringer("code", sensorErr.Code)
		}
		event.Msg("failed to read sensor")

		status := domain.UnavailableStatus(ch.ID(), err, now)
		if err := p.display.UpdateCurrentValue(ctx, status); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("failed to show sensor unavailable")
		}
		return
	}

	log.Debug().
		Str("channel", channel).
		Float64("lux", lux).
		Msg("read sensor")

	pub, publish := ch.Record(lux, now)

	p.metrics.SamplesTotal.WithLabelValues(channel).Inc()
	mean, _ := ch.Mean()
	p.metrics.MeanLux.WithLabelValues(channel).Set(mean)

	if !publish {
		return
	}

	p.metrics.PublishesTotal.WithLabelValues(channel).Inc()
	log.Debug().
		Str("channel", channel).
		Float64("lux", pub.Value).
		Int("samples", pub.Samples).
		Msg("publishing averaged reading")

	p.dispatcher.Publish(ctx, pub)
}

func (p *Poller) cleanup(ctx context.Context) {
	if p.repo == nil {
		return
	}

	if err := p.repo.DeleteOldReadings(ctx, p.retention); err != nil {
		log.Error().Err(err).Msg("failed to delete old readings")
	} else {
		log.Info().Dur("retention", p.retention).Msg("deleted old readings")
	}
}
