package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	c, err := NewChannel(ChannelALS, DefaultWindowSize, DefaultPublishPeriod)
	if err != nil {
		t.Fatalf("NewChannel failed: %v", err)
	}
	return c
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func TestNewChannel_InvalidParameters(t *testing.T) {
	tests := []struct {
		name          string
		window, every int
	}{
		{name: "zero window", window: 0, every: 5},
		{name: "negative window", window: -1, every: 5},
		{name: "zero publish period", window: 30, every: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChannel(ChannelALS, tt.window, tt.every); err == nil {
				t.Error("expected error but got nil")
			}
		})
	}
}

func TestChannel_NewIsEmpty(t *testing.T) {
	c := newTestChannel(t)

	if c.Len() != 0 || c.Sum() != 0 || c.Counter() != 0 {
		t.Errorf("expected empty state, got len=%d sum=%v counter=%d", c.Len(), c.Sum(), c.Counter())
	}
	if _, ok := c.LastPublished(); ok {
		t.Error("expected no last published value")
	}
}

func TestChannel_IngestWarmup(t *testing.T) {
	c := newTestChannel(t)

	for i := 1; i <= 3; i++ {
		mean, n := c.Ingest(float64(i * 10))
		if n != i {
			t.Errorf("sample %d: expected window size %d, got %d", i, i, n)
		}
		want := float64(10*i*(i+1)/2) / float64(i)
		if mean != want {
			t.Errorf("sample %d: expected mean %v, got %v", i, want, mean)
		}
	}
}

func TestChannel_WindowBoundedAndSumExact(t *testing.T) {
	c := newTestChannel(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		raw := rng.Float64() * 100000
		mean, n := c.Ingest(raw)

		window := c.Window()
		if len(window) > DefaultWindowSize || n != len(window) {
			t.Fatalf("sample %d: window size %d (reported %d) exceeds %d", i, len(window), n, DefaultWindowSize)
		}
		if window[len(window)-1] != raw {
			t.Fatalf("sample %d: newest sample %v not at the end of the window", i, raw)
		}

		exact := sum(window)
		if diff := math.Abs(c.Sum() - exact); diff > 1e-6*math.Max(1, exact) {
			t.Fatalf("sample %d: running sum %v drifted from exact %v", i, c.Sum(), exact)
		}
		if diff := math.Abs(mean - exact/float64(len(window))); diff > 1e-6 {
			t.Fatalf("sample %d: mean %v, want %v", i, mean, exact/float64(len(window)))
		}
	}
}

func TestChannel_EvictsOldestFirst(t *testing.T) {
	c, err := NewChannel(ChannelWhite, 3, 5)
	if err != nil {
		t.Fatalf("NewChannel failed: %v", err)
	}

	for _, v := range []float64{1, 2, 3, 4, 5} {
		c.Ingest(v)
	}

	got := c.Window()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected window %v, got %v", want, got)
		}
	}
	if c.Sum() != 12 {
		t.Errorf("expected sum 12, got %v", c.Sum())
	}
}

func TestChannel_FirstPublishAtPublishPeriod(t *testing.T) {
	c := newTestChannel(t)

	for i := 1; i <= DefaultPublishPeriod; i++ {
		c.Ingest(float64(i))
		published := c.ShouldPublish()
		if i < DefaultPublishPeriod && published {
			t.Fatalf("published early at sample %d", i)
		}
		if i == DefaultPublishPeriod && !published {
			t.Fatalf("expected publish at sample %d", i)
		}
	}

	if c.Len() >= c.Capacity() {
		t.Fatalf("expected window not yet full, got %d", c.Len())
	}
	if c.Counter() != 0 {
		t.Errorf("expected counter reset after publish, got %d", c.Counter())
	}
	last, ok := c.LastPublished()
	if !ok || last != 3 {
		t.Errorf("expected last published 3, got %v (ok=%v)", last, ok)
	}
}

func TestChannel_CounterStaysBelowPublishPeriod(t *testing.T) {
	c := newTestChannel(t)

	for i := 0; i < 100; i++ {
		c.Ingest(1)
		c.ShouldPublish()
		if c.Counter() < 0 || c.Counter() >= DefaultPublishPeriod {
			t.Fatalf("counter %d outside [0, %d)", c.Counter(), DefaultPublishPeriod)
		}
	}
}

func TestChannel_PublishScenario(t *testing.T) {
	c := newTestChannel(t)
	now := time.Unix(1700000000, 0)

	var published []float64
	feed := func(v float64, count int) {
		for i := 0; i < count; i++ {
			if pub, ok := c.Record(v, now); ok {
				published = append(published, pub.Value)
			}
		}
	}

	feed(10, 5)
	feed(20, 5)
	if len(published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(published))
	}
	if published[0] != 10 {
		t.Errorf("first publish: expected 10, got %v", published[0])
	}
	if published[1] != 15 {
		t.Errorf("second publish: expected 15, got %v", published[1])
	}

	// Up to 30 samples: 5 tens and 25 twenties.
	feed(20, 20)
	if got, want := published[len(published)-1], (5*10.0+25*20.0)/30; math.Abs(got-want) > 1e-9 {
		t.Errorf("publish at sample 30: expected %v, got %v", want, got)
	}

	// Five more twenties evict the tens.
	feed(20, 5)
	if got := published[len(published)-1]; got != 20 {
		t.Errorf("publish at sample 35: expected 20, got %v", got)
	}
	if c.Len() != DefaultWindowSize {
		t.Errorf("expected full window, got %d", c.Len())
	}
}

func TestChannel_RecordPublication(t *testing.T) {
	c, _ := NewChannel(ChannelWhite, 30, 1)
	now := time.Unix(1700000000, 0)

	pub, ok := c.Record(12.5, now)
	if !ok {
		t.Fatal("expected publish with period 1")
	}
	if pub.Channel != ChannelWhite || pub.Value != 12.5 || pub.Samples != 1 || !pub.Timestamp.Equal(now) {
		t.Errorf("unexpected publication %+v", pub)
	}
}

func TestChannelID_IsKnown(t *testing.T) {
	if !ChannelALS.IsKnown() || !ChannelWhite.IsKnown() {
		t.Error("expected als and white to be known")
	}
	if ChannelID("uv").IsKnown() {
		t.Error("expected uv to be unknown")
	}
}

func TestSensorError_MatchesUnavailable(t *testing.T) {
	err := NewSensorError(SensorErrI2C, "read failed", errors.New("remote I/O error"))

	if !errors.Is(err, ErrSensorUnavailable) {
		t.Error("expected sensor error to match ErrSensorUnavailable")
	}

	var sensorErr *SensorError
	if !errors.As(error(err), &sensorErr) || sensorErr.Code != SensorErrI2C {
		t.Errorf("expected i2c sensor error, got %v", err)
	}
}
