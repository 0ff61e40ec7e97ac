package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestReputationInitializeOnce(t *testing.T) {
	repo := newFakeReputationRepository()
	service := NewReputationService(repo, nil, nil)

	if err := service.Initialize(context.Background(), "id-1"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	record, err := service.Get(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Score != domain.InitialScore {
		t.Fatalf("expected initial score %d, got %d", domain.InitialScore, record.Score)
	}
	if record.IsBanned {
		t.Fatalf("new identity must not be banned")
	}

	if err := service.Initialize(context.Background(), "id-1"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestReputationApplyDeltaNotInitialized(t *testing.T) {
	service := NewReputationService(newFakeReputationRepository(), nil, nil)

	if _, err := service.ApplyDelta(context.Background(), "missing", -10); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestReputationScoreBounds(t *testing.T) {
	repo := newFakeReputationRepository()
	service := NewReputationService(repo, nil, nil)
	ctx := context.Background()

	if err := service.Initialize(ctx, "id-1"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	outcome, err := service.ApplyDelta(ctx, "id-1", 5000)
	if err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if outcome.NewScore != domain.MaxScore {
		t.Fatalf("expected score clamped to %d, got %d", domain.MaxScore, outcome.NewScore)
	}

	outcome, err = service.ApplyDelta(ctx, "id-1", -9999)
	if err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if outcome.NewScore != domain.MinScore {
		t.Fatalf("expected score clamped to %d, got %d", domain.MinScore, outcome.NewScore)
	}

	for _, delta := range []int{-100, 40, -3, 700, 999, -2000} {
		outcome, err = service.ApplyDelta(ctx, "id-1", delta)
		if err != nil {
			t.Fatalf("ApplyDelta(%d) returned error: %v", delta, err)
		}
		if outcome.NewScore < domain.MinScore || outcome.NewScore > domain.MaxScore {
			t.Fatalf("score %d out of bounds after delta %d", outcome.NewScore, delta)
		}
	}
}

func TestReputationBanHysteresis(t *testing.T) {
	repo := newFakeReputationRepository()
	events := &stubEventPublisher{}
	service := NewReputationService(repo, events, nil)
	ctx := context.Background()

	if err := service.Initialize(ctx, "id-1"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	// 100 -> 40: crosses the threshold, one ban event.
	if _, err := service.ApplyDelta(ctx, "id-1", -60); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if len(events.banEvents) != 1 || !events.banEvents[0].Banned {
		t.Fatalf("expected a single ban event, got %+v", events.banEvents)
	}

	// 40 -> 30: still banned, no additional event.
	if _, err := service.ApplyDelta(ctx, "id-1", -10); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if len(events.banEvents) != 1 {
		t.Fatalf("expected no event while staying banned, got %d", len(events.banEvents))
	}

	// 30 -> 60: crosses back, one unban event.
	if _, err := service.ApplyDelta(ctx, "id-1", 30); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if len(events.banEvents) != 2 || events.banEvents[1].Banned {
		t.Fatalf("expected an unban event, got %+v", events.banEvents)
	}

	// 60 -> 70: no boundary crossing.
	if _, err := service.ApplyDelta(ctx, "id-1", 10); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}
	if len(events.banEvents) != 2 {
		t.Fatalf("expected no further events, got %d", len(events.banEvents))
	}
}

func TestReputationDecayedRead(t *testing.T) {
	repo := newFakeReputationRepository()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	service := NewReputationService(repo, nil, nil).WithClock(fixedClock(start))
	ctx := context.Background()

	if err := service.Initialize(ctx, "id-1"); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if _, err := service.ApplyDelta(ctx, "id-1", -60); err != nil {
		t.Fatalf("ApplyDelta returned error: %v", err)
	}

	// Ten days later the effective score has drifted 10 points toward the
	// initial score, without any write.
	service.WithClock(fixedClock(start.Add(10 * 24 * time.Hour)))
	record, err := service.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if record.Score != 50 {
		t.Fatalf("expected decayed score 50, got %d", record.Score)
	}
	// The ban flag only moves on a delta, never from decay alone.
	if !record.IsBanned {
		t.Fatalf("expected stored ban flag to persist through decay")
	}
}
