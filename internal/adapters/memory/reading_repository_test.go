package memory

import (
	"context"
	"testing"
	"time"

	"github.com/quentinrf/luxpipe/internal/domain"
)

func makeReading(channel domain.ChannelID, lux float64, ts time.Time) *domain.LightReading {
	r, _ := domain.NewLightReading(channel, lux)
	r.Timestamp = ts
	return r
}

func TestSaveAssignsIDs(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	a := makeReading(domain.ChannelALS, 1, time.Now())
	b := makeReading(domain.ChannelALS, 2, time.Now())
	_ = repo.SaveReading(ctx, a)
	_ = repo.SaveReading(ctx, b)

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
	}
}

func TestStoredReadingIsACopy(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	r := makeReading(domain.ChannelALS, 1, time.Now())
	_ = repo.SaveReading(ctx, r)
	r.Lux = 999

	got, err := repo.GetReading(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if got.Lux != 1 {
		t.Errorf("expected stored lux 1, got %v", got.Lux)
	}
}

func TestGetReadingsInRange_HalfOpen(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelALS, 100, ts))
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelALS, 200, ts.Add(time.Second)))
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelWhite, 300, ts))

	results, err := repo.GetReadingsInRange(ctx, domain.ChannelALS, ts, ts.Add(time.Second))
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 1 || results[0].Lux != 100 {
		t.Errorf("expected only the reading at start, got %v", results)
	}
}

func TestGetLatestReading(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	if _, err := repo.GetLatestReading(ctx, domain.ChannelALS); err != domain.ErrReadingNotFound {
		t.Errorf("expected ErrReadingNotFound, got %v", err)
	}

	now := time.Now()
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelALS, 100, now.Add(-time.Minute)))
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelALS, 200, now))
	_ = repo.SaveReading(ctx, makeReading(domain.ChannelWhite, 300, now.Add(time.Minute)))

	latest, err := repo.GetLatestReading(ctx, domain.ChannelALS)
	if err != nil {
		t.Fatalf("GetLatestReading failed: %v", err)
	}
	if latest.Lux != 200 {
		t.Errorf("expected latest lux 200, got %v", latest.Lux)
	}
}

func TestDeleteOldReadings(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	old := makeReading(domain.ChannelALS, 1, time.Now().Add(-48*time.Hour))
	recent := makeReading(domain.ChannelALS, 2, time.Now())
	_ = repo.SaveReading(ctx, old)
	_ = repo.SaveReading(ctx, recent)

	if err := repo.DeleteOldReadings(ctx, 24*time.Hour); err != nil {
		t.Fatalf("DeleteOldReadings failed: %v", err)
	}
	if _, err := repo.GetReading(ctx, old.ID); err != domain.ErrReadingNotFound {
		t.Errorf("expected old reading to be deleted, got err: %v", err)
	}
	if _, err := repo.GetReading(ctx, recent.ID); err != nil {
		t.Errorf("expected recent reading to remain, got err: %v", err)
	}
}
