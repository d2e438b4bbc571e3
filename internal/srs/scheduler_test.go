package srs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/lingolens/srs-service/internal/dal"
	"github.com/lingolens/srs-service/internal/dal/kv"
	"github.com/lingolens/srs-service/pkg/cache"
)

const floatTolerance = 1e-9

type (
	recordingSink struct {
		events chan string
	}

	failingSink struct {
		events chan string
	}
)

func (s *recordingSink) Notify(_ context.Context, event, _ string, _ map[string]any) error {
	s.events <- event
	return nil
}

func (s *failingSink) Notify(_ context.Context, event, _ string, _ map[string]any) error {
	s.events <- event
	return errors.New("collector is down")
}

func newTestScheduler(t *testing.T, sink EventSink) (*Scheduler, *kv.CardStore) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewCardStore(context.Background(), cache.NewInMemory(), log)
	if sink == nil {
		sink = &recordingSink{events: make(chan string, 100)}
	}

	return NewScheduler(store, sink, Config{}, log), store
}

func newTestCard(t *testing.T, store *kv.CardStore, userID, label string) *dal.Card {
	t.Helper()

	card, err := store.FindOrCreate(context.Background(), userID, label, "translation", "", "")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	return card
}

func TestReviewLapseResets(t *testing.T) {
	for _, quality := range []Quality{Again, Hard} {
		t.Run(quality.String(), func(t *testing.T) {
			s, store := newTestScheduler(t, nil)
			card := newTestCard(t, store, "u1", "dumpling")

			// Mature the card first so the reset has something to undo.
			for i := 0; i < 4; i++ {
				if _, err := s.Review(context.Background(), card.ID, Good); err != nil {
					t.Fatalf("Review: %v", err)
				}
			}

			updated, err := s.Review(context.Background(), card.ID, quality)
			if err != nil {
				t.Fatalf("Review: %v", err)
			}
			if updated.Repetitions != 0 {
				t.Errorf("Repetitions = %d, want 0", updated.Repetitions)
			}
			if updated.IntervalDays != 1 {
				t.Errorf("IntervalDays = %d, want 1", updated.IntervalDays)
			}
			if updated.IncorrectCount != 1 {
				t.Errorf("IncorrectCount = %d, want 1", updated.IncorrectCount)
			}
		})
	}
}

func TestReviewEaseFactorUpdatesOnFailure(t *testing.T) {
	tests := []struct {
		quality  Quality
		wantEase float64
	}{
		{Again, 2.5 - 0.32},
		{Hard, 2.5 - 0.14},
		{Good, 2.5},
		{Easy, 2.5 + 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.quality.String(), func(t *testing.T) {
			s, store := newTestScheduler(t, nil)
			card := newTestCard(t, store, "u1", "dumpling")

			updated, err := s.Review(context.Background(), card.ID, tt.quality)
			if err != nil {
				t.Fatalf("Review: %v", err)
			}
			if math.Abs(updated.EaseFactor-tt.wantEase) > floatTolerance {
				t.Errorf("EaseFactor = %v, want %v", updated.EaseFactor, tt.wantEase)
			}
		})
	}
}

func TestReviewEaseFactorFloor(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	for i := 0; i < 20; i++ {
		updated, err := s.Review(context.Background(), card.ID, Again)
		if err != nil {
			t.Fatalf("Review %d: %v", i, err)
		}
		if updated.EaseFactor < minEaseFactor {
			t.Fatalf("EaseFactor = %v after %d failures, want >= %v", updated.EaseFactor, i+1, minEaseFactor)
		}
	}

	final, err := store.GetByID(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if math.Abs(final.EaseFactor-minEaseFactor) > floatTolerance {
		t.Errorf("EaseFactor = %v after repeated failures, want exactly %v", final.EaseFactor, minEaseFactor)
	}
}

func TestReviewIntervalLadder(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	// Good keeps ease at 2.5, so the third pass lands at round(6 * 2.5).
	wantIntervals := []int{1, 6, 15}
	for i, want := range wantIntervals {
		updated, err := s.Review(context.Background(), card.ID, Good)
		if err != nil {
			t.Fatalf("Review %d: %v", i, err)
		}
		if updated.IntervalDays != want {
			t.Errorf("review %d: IntervalDays = %d, want %d", i+1, updated.IntervalDays, want)
		}
		if updated.Repetitions != i+1 {
			t.Errorf("review %d: Repetitions = %d, want %d", i+1, updated.Repetitions, i+1)
		}
	}
}

func TestReviewScenarioDumpling(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	if card.IntervalDays != 0 || card.Repetitions != 0 {
		t.Fatalf("new card: interval=%d repetitions=%d, want 0/0", card.IntervalDays, card.Repetitions)
	}

	first, err := s.Review(context.Background(), card.ID, Good)
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	if first.IntervalDays != 1 || first.Repetitions != 1 {
		t.Fatalf("first review: interval=%d repetitions=%d, want 1/1", first.IntervalDays, first.Repetitions)
	}

	second, err := s.Review(context.Background(), card.ID, Good)
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if second.IntervalDays != 6 || second.Repetitions != 2 {
		t.Fatalf("second review: interval=%d repetitions=%d, want 6/2", second.IntervalDays, second.Repetitions)
	}

	third, err := s.Review(context.Background(), card.ID, Easy)
	if err != nil {
		t.Fatalf("third review: %v", err)
	}
	// Two Good reviews leave ease at 2.5; Easy bumps it to 2.6, and
	// round(6 * 2.6) = 16.
	if math.Abs(third.EaseFactor-2.6) > floatTolerance {
		t.Errorf("EaseFactor = %v, want 2.6", third.EaseFactor)
	}
	if third.IntervalDays != 16 {
		t.Errorf("IntervalDays = %d, want 16", third.IntervalDays)
	}
	if third.CorrectCount != 3 {
		t.Errorf("CorrectCount = %d, want 3", third.CorrectCount)
	}
}

func TestReviewGoodThenAgain(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	if _, err := s.Review(context.Background(), card.ID, Good); err != nil {
		t.Fatalf("Review: %v", err)
	}
	updated, err := s.Review(context.Background(), card.ID, Again)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	if updated.Repetitions != 0 {
		t.Errorf("Repetitions = %d, want 0", updated.Repetitions)
	}
	if updated.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", updated.IntervalDays)
	}
	if math.Abs(updated.EaseFactor-(2.5-0.32)) > floatTolerance {
		t.Errorf("EaseFactor = %v, want %v", updated.EaseFactor, 2.5-0.32)
	}
}

func TestReviewUnknownCard(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	_, err := s.Review(context.Background(), "no-such-card", Good)
	if !errors.Is(err, dal.ErrNotFound) {
		t.Fatalf("Review error = %v, want dal.ErrNotFound", err)
	}
}

func TestReviewNextReviewCalendarDays(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	now := time.Date(2026, time.March, 1, 22, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	updated, err := s.Review(context.Background(), card.ID, Good)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !updated.LastReview.Equal(now) {
		t.Errorf("LastReview = %v, want %v", updated.LastReview, now)
	}
	if want := now.AddDate(0, 0, 1); !updated.NextReview.Equal(want) {
		t.Errorf("NextReview = %v, want %v", updated.NextReview, want)
	}
	if updated.NextReview.Before(updated.LastReview) {
		t.Error("NextReview is before LastReview")
	}
}

func TestReviewNextReviewExactDays(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewCardStore(context.Background(), cache.NewInMemory(), log)
	s := NewScheduler(store, &recordingSink{events: make(chan string, 1)}, Config{ExactDays: true}, log)
	card := newTestCard(t, store, "u1", "dumpling")

	now := time.Date(2026, time.March, 1, 22, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	updated, err := s.Review(context.Background(), card.ID, Good)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if want := now.Add(24 * time.Hour); !updated.NextReview.Equal(want) {
		t.Errorf("NextReview = %v, want %v", updated.NextReview, want)
	}
}

func TestDueCardsOrderingAndIdempotence(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	// Review each card at a different instant so their next reviews differ.
	labels := []string{"dumpling", "noodles", "tea"}
	for i, label := range labels {
		card := newTestCard(t, store, "u1", label)
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if _, err := s.Review(context.Background(), card.ID, Good); err != nil {
			t.Fatalf("Review %s: %v", label, err)
		}
	}
	// One card far in the future must not show up.
	future := newTestCard(t, store, "u1", "dragon fruit")
	s.now = func() time.Time { return base }
	for i := 0; i < 3; i++ {
		if _, err := s.Review(context.Background(), future.ID, Easy); err != nil {
			t.Fatalf("Review future: %v", err)
		}
	}

	asOf := base.AddDate(0, 0, 2)
	due, err := s.DueCards(context.Background(), "u1", asOf)
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("DueCards returned %d cards, want 3", len(due))
	}
	for i, label := range labels {
		if due[i].Label != label {
			t.Errorf("due[%d].Label = %q, want %q", i, due[i].Label, label)
		}
	}
	for i := 1; i < len(due); i++ {
		if due[i].NextReview.Before(due[i-1].NextReview) {
			t.Errorf("due cards are not ordered by NextReview at index %d", i)
		}
	}

	again, err := s.DueCards(context.Background(), "u1", asOf)
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	if len(again) != len(due) {
		t.Fatalf("repeated DueCards returned %d cards, want %d", len(again), len(due))
	}
	for i := range due {
		if again[i].ID != due[i].ID {
			t.Errorf("repeated DueCards differs at index %d: %q vs %q", i, again[i].ID, due[i].ID)
		}
	}
}

func TestDueCardsNewCardIsDueImmediately(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	newTestCard(t, store, "u1", "dumpling")

	due, err := s.DueCards(context.Background(), "u1", time.Now())
	if err != nil {
		t.Fatalf("DueCards: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("DueCards returned %d cards, want 1", len(due))
	}
}

func TestStatsZeroReviews(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	newTestCard(t, store, "u1", "dumpling")

	stats, err := s.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCards != 1 {
		t.Errorf("TotalCards = %d, want 1", stats.TotalCards)
	}
	if stats.TotalReviews != 0 {
		t.Errorf("TotalReviews = %d, want 0", stats.TotalReviews)
	}
	if stats.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0", stats.Accuracy)
	}
}

func TestStats(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")
	other := newTestCard(t, store, "u1", "noodles")
	newTestCard(t, store, "u2", "tea")

	for _, q := range []Quality{Good, Good, Again} {
		if _, err := s.Review(context.Background(), card.ID, q); err != nil {
			t.Fatalf("Review: %v", err)
		}
	}
	if _, err := s.Review(context.Background(), other.ID, Easy); err != nil {
		t.Fatalf("Review: %v", err)
	}

	stats, err := s.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCards != 2 {
		t.Errorf("TotalCards = %d, want 2", stats.TotalCards)
	}
	if stats.TotalReviews != 4 {
		t.Errorf("TotalReviews = %d, want 4", stats.TotalReviews)
	}
	if want := 75.0; math.Abs(stats.Accuracy-want) > floatTolerance {
		t.Errorf("Accuracy = %v, want %v", stats.Accuracy, want)
	}
}

func TestReviewSinkFailureDoesNotFailReview(t *testing.T) {
	sink := &failingSink{events: make(chan string, 1)}
	s, store := newTestScheduler(t, sink)
	card := newTestCard(t, store, "u1", "dumpling")

	updated, err := s.Review(context.Background(), card.ID, Good)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if updated.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", updated.IntervalDays)
	}

	select {
	case event := <-sink.events:
		if event != "card_reviewed" {
			t.Errorf("event = %q, want card_reviewed", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not notified")
	}
}

func TestReviewSerializesConcurrentReviews(t *testing.T) {
	s, store := newTestScheduler(t, nil)
	card := newTestCard(t, store, "u1", "dumpling")

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := s.Review(context.Background(), card.ID, Good)
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Review: %v", err)
		}
	}

	final, err := store.GetByID(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Repetitions != 10 {
		t.Errorf("Repetitions = %d, want 10 (lost update)", final.Repetitions)
	}
	if final.CorrectCount != 10 {
		t.Errorf("CorrectCount = %d, want 10", final.CorrectCount)
	}
}
