package ports

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/metrics"
)

// DefaultSinkTimeout bounds a single sink delivery
const DefaultSinkTimeout = 500 * time.Millisecond

// grace is how long Publish waits past the sink timeout for a sink that
// ignores its context.
const grace = 100 * time.Millisecond

// SinkStats counts deliveries of one sink on one channel.
type SinkStats struct {
	Delivered uint64
	Failed    uint64
}

type sinkStats struct {
	delivered atomic.Uint64
	failed    atomic.Uint64
}

type registration struct {
	sink  Sink
	key   string
	stats *sinkStats
}

// Dispatcher fans a published value out to every sink registered for its
// channel. Sinks run concurrently and a failing sink never affects the
// others or the caller.
type Dispatcher struct {
	mu      sync.RWMutex
	sinks   map[domain.ChannelID][]registration
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher with the given per-sink timeout.
func NewDispatcher(timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	return &Dispatcher{
		sinks:   make(map[domain.ChannelID][]registration),
		timeout: timeout,
		metrics: m,
	}
}

// Register adds a sink for a channel.
func (d *Dispatcher) Register(channel domain.ChannelID, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sinks[channel] = append(d.sinks[channel], registration{
		sink:  sink,
		key:   sink.Name() + "/" + channel.String(),
		stats: &sinkStats{},
	})

	log.Info().
		Str("channel", channel.String()).
		Str("sink", sink.Name()).
		Msg("registered sink")
}

// Publish delivers pub to the channel's sinks and waits for them, at most
// the sink timeout plus a short grace period.
func (d *Dispatcher) Publish(ctx context.Context, pub domain.Publication) {
	d.mu.RLock()
	regs := d.sinks[pub.Channel]
	d.mu.RUnlock()

	if len(regs) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(regs))
	for _, reg := range regs {
		go func(reg registration) {
			defer wg.Done()
			d.deliver(ctx, reg, pub)
		}(reg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.timeout + grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		log.Warn().
			Str("channel", pub.Channel.String()).
			Dur("timeout", d.timeout).
			Msg("sinks still running after timeout, not waiting")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, reg registration, pub domain.Publication) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := safeDeliver(ctx, reg.sink, pub)

	sinkName := reg.sink.Name()
	channel := pub.Channel.String()
	if err != nil {
		reg.stats.failed.Add(1)
		d.metrics.SinkFailuresTotal.WithLabelValues(sinkName, channel).Inc()
		log.Error().
			Err(err).
			Str("sink", sinkName).
			Str("channel", channel).
			Msg("sink delivery failed")
		return
	}

	reg.stats.delivered.Add(1)
	d.metrics.SinkDeliveriesTotal.WithLabelValues(sinkName, channel).Inc()
}

func safeDeliver(ctx context.Context, sink Sink, pub domain.Publication) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()
	return sink.Deliver(ctx, pub)
}

// Stats returns a snapshot keyed by "<sink>/<channel>".
func (d *Dispatcher) Stats() map[string]SinkStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]SinkStats)
	for _, regs := range d.sinks {
		for _, reg := range regs {
			out[reg.key] = SinkStats{
				Delivered: reg.stats.delivered.Load(),
				Failed:    reg.stats.failed.Load(),
			}
		}
	}
	return out
}
