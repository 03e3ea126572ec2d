package ports

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/metrics"
)

// Sink consumes published values. Deliver must honour ctx cancellation.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, pub domain.Publication) error
}

// DisplaySink shows the live value of each channel
// This is a PORT - the display board adapter implements it
type DisplaySink interface {
	UpdateCurrentValue(ctx context.Context, status domain.Status) error
}

// BrokerClient publishes payloads to a message broker
// This is a PORT - the MQTT adapter implements it
type BrokerClient interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

type displaySink struct {
	display DisplaySink
}

// NewDisplaySink adapts a display to the dispatcher
func NewDisplaySink(display DisplaySink) Sink {
	return &displaySink{display: display}
}

func (s *displaySink) Name() string { return "display" }

func (s *displaySink) Deliver(ctx context.Context, pub domain.Publication) error {
	return s.display.UpdateCurrentValue(ctx, domain.AvailableStatus(pub))
}

type historySink struct {
	repo domain.ReadingRepository
}

// NewHistorySink appends every published value to the history log
func NewHistorySink(repo domain.ReadingRepository) Sink {
	return &historySink{repo: repo}
}

func (s *historySink) Name() string { return "history" }

func (s *historySink) Deliver(ctx context.Context, pub domain.Publication) error {
	reading, err := domain.NewLightReadingFromPublication(pub)
	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	if err := s.repo.SaveReading(ctx, reading); err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}
	return nil
}

type brokerSink struct {
	client  BrokerClient
	topic   string
	metrics *metrics.Metrics
}

// NewBrokerSink publishes values to topic. While the client is disconnected
// values are dropped, not queued.
func NewBrokerSink(client BrokerClient, topic string, m *metrics.Metrics) Sink {
	return &brokerSink{client: client, topic: topic, metrics: m}
}

func (s *brokerSink) Name() string { return "broker" }

func (s *brokerSink) Deliver(ctx context.Context, pub domain.Publication) error {
	if !s.client.IsConnected() {
		s.metrics.BrokerDroppedTotal.Inc()
		log.Debug().
			Str("channel", pub.Channel.String()).
			Str("topic", s.topic).
			Msg("broker not connected, dropping value")
		return nil
	}

	return s.client.Publish(ctx, s.topic, FormatValue(pub.Value))
}

// FormatValue renders a value as the broker payload (shortest decimal form).
func FormatValue(v float64) []byte {
	return []byte(strconv.FormatFloat(v, 'f', -1, 64))
}
