package domain

import (
	"fmt"
	"time"
)

// ChannelID names one independent measurement stream.
type ChannelID string

const (
	// ChannelALS is the ambient light channel (ALS register).
	ChannelALS ChannelID = "als"

	// ChannelWhite is the white light channel (WHITE register).
	ChannelWhite ChannelID = "white"
)

const (
	// DefaultWindowSize is the number of raw samples averaged per channel
	DefaultWindowSize = 30

	// DefaultPublishPeriod is the number of raw samples between publishes
	DefaultPublishPeriod = 5
)

// KnownChannels lists the channels the sensor can produce, in poll order.
var KnownChannels = []ChannelID{ChannelALS, ChannelWhite}

// IsKnown reports whether id is a channel the sensor can produce.
func (id ChannelID) IsKnown() bool {
	for _, known := range KnownChannels {
		if id == known {
			return true
		}
	}
	return false
}

func (id ChannelID) String() string {
	return string(id)
}

// Publication is an averaged value handed to sinks on a publish tick.
// It is a plain value: sinks never see the window itself.
type Publication struct {
	Channel   ChannelID
	Value     float64
	Samples   int // number of raw samples behind Value
	Timestamp time.Time
}

// Channel holds the sliding window and decimation state for one stream.
//
// The window is a ring buffer of raw samples with a running sum, so Ingest is
// O(1). Channel is not safe for concurrent use; the poller owns it.
type Channel struct {
	id            ChannelID
	publishPeriod int

	samples []float64 // ring, capacity == window size
	head    int       // index of the oldest sample
	size    int
	sum     float64
	mean    float64

	counter int

	lastPublished float64
	published     bool
}

// NewChannel creates empty channel state.
func NewChannel(id ChannelID, windowSize, publishPeriod int) (*Channel, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("channel %s: window size must be positive, got %d", id, windowSize)
	}
	if publishPeriod < 1 {
		return nil, fmt.Errorf("channel %s: publish period must be positive, got %d", id, publishPeriod)
	}

	return &Channel{
		id:            id,
		publishPeriod: publishPeriod,
		samples:       make([]float64, windowSize),
	}, nil
}

// ID returns the channel id
func (c *Channel) ID() ChannelID {
	return c.id
}

// Ingest adds a raw sample, evicting the oldest one once the window is full,
// and returns the mean over the samples now in the window.
func (c *Channel) Ingest(raw float64) (mean float64, n int) {
	capacity := len(c.samples)

	if c.size == capacity {
		c.sum -= c.samples[c.head]
		c.samples[c.head] = raw
		c.sum += raw
		c.head = (c.head + 1) % capacity

		// Re-derive the sum once per full rotation so add/subtract rounding
		// never builds up beyond a single window's worth.
		if c.head == 0 {
			c.resum()
		}
	} else {
		c.samples[(c.head+c.size)%capacity] = raw
		c.size++
		c.sum += raw
	}

	c.counter++
	c.mean = c.sum / float64(c.size)

	return c.mean, c.size
}

// ShouldPublish reports whether the last ingested sample completes a publish
// period. When it does the counter is reset and the current mean becomes the
// last published value.
func (c *Channel) ShouldPublish() bool {
	if c.counter < c.publishPeriod {
		return false
	}

	c.counter = 0
	c.lastPublished = c.mean
	c.published = true
	return true
}

// Record runs Ingest then ShouldPublish and builds the publication for a
// publish tick.
func (c *Channel) Record(raw float64, now time.Time) (Publication, bool) {
	mean, n := c.Ingest(raw)
	if !c.ShouldPublish() {
		return Publication{}, false
	}

	return Publication{
		Channel:   c.id,
		Value:     mean,
		Samples:   n,
		Timestamp: now,
	}, true
}

// Mean returns the mean computed by the last Ingest and the window size.
func (c *Channel) Mean() (float64, int) {
	return c.mean, c.size
}

// Len returns the number of samples in the window
func (c *Channel) Len() int {
	return c.size
}

// Capacity returns the window size
func (c *Channel) Capacity() int {
	return len(c.samples)
}

// Sum returns the running sum of the window
func (c *Channel) Sum() float64 {
	return c.sum
}

// Counter returns the samples received since the last publish
func (c *Channel) Counter() int {
	return c.counter
}

// Window returns a copy of the window, oldest sample first.
func (c *Channel) Window() []float64 {
	out := make([]float64, c.size)
	for i := 0; i < c.size; i++ {
		out[i] = c.samples[(c.head+i)%len(c.samples)]
	}
	return out
}

// LastPublished returns the most recent published mean, if any.
func (c *Channel) LastPublished() (float64, bool) {
	return c.lastPublished, c.published
}

func (c *Channel) resum() {
	var sum float64
	for i := 0; i < c.size; i++ {
		sum += c.samples[(c.head+i)%len(c.samples)]
	}
	c.sum = sum
}
