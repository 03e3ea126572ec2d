package ports

import (
	"context"
	"errors"
	"sync"

	"github.com/quentinrf/luxpipe/internal/domain"
)

type result struct {
	lux float64
	err error
}

func ok(lux float64) result { return result{lux: lux} }

func fail(msg string) result {
	return result{err: domain.NewSensorError(domain.SensorErrI2C, msg, nil)}
}

// scriptedSensor replays a fixed sequence of results per channel and then
// keeps returning the last one.
type scriptedSensor struct {
	mu      sync.Mutex
	results map[domain.ChannelID][]result
	calls   map[domain.ChannelID]int
}

func newScriptedSensor() *scriptedSensor {
	return &scriptedSensor{
		results: make(map[domain.ChannelID][]result),
		calls:   make(map[domain.ChannelID]int),
	}
}

func (s *scriptedSensor) script(channel domain.ChannelID, results ...result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[channel] = append(s.results[channel], results...)
}

func (s *scriptedSensor) ReadLux(ctx context.Context, channel domain.ChannelID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.results[channel]
	if len(results) == 0 {
		return 0, domain.NewSensorError(domain.SensorErrDevice, "no script", nil)
	}

	i := s.calls[channel]
	s.calls[channel]++
	if i >= len(results) {
		i = len(results) - 1
	}
	return results[i].lux, results[i].err
}

func (s *scriptedSensor) Close() error { return nil }

type recordingDisplay struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (d *recordingDisplay) UpdateCurrentValue(ctx context.Context, status domain.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, status)
	return nil
}

func (d *recordingDisplay) snapshot() []domain.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Status(nil), d.statuses...)
}

type recordingSink struct {
	name string

	mu   sync.Mutex
	pubs []domain.Publication
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, pub domain.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, pub)
	return nil
}

func (s *recordingSink) values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.pubs))
	for i, pub := range s.pubs {
		out[i] = pub.Value
	}
	return out
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Deliver(ctx context.Context, pub domain.Publication) error {
	return errors.New("network unavailable")
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Deliver(ctx context.Context, pub domain.Publication) error {
	panic("boom")
}

// stuckSink ignores its context and blocks until released.
type stuckSink struct {
	release chan struct{}
}

func (s *stuckSink) Name() string { return "stuck" }

func (s *stuckSink) Deliver(ctx context.Context, pub domain.Publication) error {
	<-s.release
	return nil
}

type fakeBroker struct {
	mu        sync.Mutex
	connected bool
	published map[string][]string
}

func newFakeBroker(connected bool) *fakeBroker {
	return &fakeBroker{connected: connected, published: make(map[string][]string)}
}

func (b *fakeBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], string(payload))
	return nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}
