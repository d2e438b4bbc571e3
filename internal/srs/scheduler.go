package srs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/lingolens/srs-service/internal/dal"
)

const (
	// minEaseFactor is the SM-2 floor; ease never drops below it.
	minEaseFactor = 1.3
	// secondInterval is the fixed interval after the second consecutive pass.
	secondInterval = 6

	notifyTimeout = 5 * time.Second
)

type (
	// EventSink receives review outcomes. Implementations must be safe to
	// fail: errors are logged and discarded, never surfaced to review callers.
	EventSink interface {
		Notify(ctx context.Context, event, userID string, properties map[string]any) error
	}

	Config struct {
		// ExactDays schedules the next review interval*24h after the review
		// instant instead of using calendar-day arithmetic.
		ExactDays bool
	}

	// Scheduler implements the SM-2 family adaptive interval algorithm over
	// a card repository.
	Scheduler struct {
		repo dal.CardRepository
		sink EventSink
		conf Config
		log  *slog.Logger

		now func() time.Time

		mx    sync.Mutex
		locks map[string]*sync.Mutex
	}

	// UserStats is the aggregate view over one user's cards.
	UserStats struct {
		TotalCards   int     `json:"total_cards"`
		DueCards     int     `json:"due_cards"`
		TotalReviews int     `json:"total_reviews"`
		Accuracy     float64 `json:"accuracy"`
	}
)

func NewScheduler(repo dal.CardRepository, sink EventSink, conf Config, log *slog.Logger) *Scheduler {
	return &Scheduler{
		repo: repo,
		sink: sink,
		conf: conf,
		log:  log,

		now: time.Now,

		locks: make(map[string]*sync.Mutex, 100),
	}
}

// Review records a recall grade for the card and reschedules it.
//
// Ease updates on every grade, including failures; only repetitions and
// interval branch on the pass threshold. The multiplicative step uses the
// interval the card had before this review, and rounds half away from zero
// so long schedules stay reproducible across platforms.
func (s *Scheduler) Review(ctx context.Context, cardID string, quality Quality) (*dal.Card, error) {
	// Reviews of one card are read-modify-write; serialize them per card id.
	lock := s.cardLock(cardID)
	lock.Lock()
	defer lock.Unlock()

	card, err := s.repo.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", cardID, err)
	}

	now := s.now()
	prevInterval := card.IntervalDays

	card.EaseFactor = nextEaseFactor(card.EaseFactor, quality)

	if quality.Correct() {
		card.Repetitions++
		switch card.Repetitions {
		case 1:
			card.IntervalDays = 1
		case 2:
			card.IntervalDays = secondInterval
		default:
			card.IntervalDays = int(math.Round(float64(prevInterval) * card.EaseFactor))
		}
		card.CorrectCount++
	} else {
		// Lapse: failure dominates regardless of prior maturity.
		card.Repetitions = 0
		card.IntervalDays = 1
		card.IncorrectCount++
	}

	card.LastReview = now
	card.NextReview = s.nextReviewAt(now, card.IntervalDays)

	if err = s.repo.Update(ctx, card); err != nil {
		return nil, fmt.Errorf("update card %s: %w", cardID, err)
	}

	s.notifyReviewed(card, quality)

	return card, nil
}

// DueCards returns the user's cards with nextReview at or before asOf,
// most overdue first. Repeated calls without an intervening review return
// the same sequence.
func (s *Scheduler) DueCards(ctx context.Context, userID string, asOf time.Time) ([]dal.Card, error) {
	cards, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	due := make([]dal.Card, 0, len(cards))
	for _, card := range cards {
		if !card.NextReview.After(asOf) {
			due = append(due, card)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].NextReview.Before(due[j].NextReview)
		}
		return due[i].ID < due[j].ID
	})

	return due, nil
}

func (s *Scheduler) Stats(ctx context.Context, userID string) (*UserStats, error) {
	cards, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	now := s.now()
	res := &UserStats{TotalCards: len(cards)}
	correct := 0
	for _, card := range cards {
		if !card.NextReview.After(now) {
			res.DueCards++
		}
		res.TotalReviews += card.ReviewCount()
		correct += card.CorrectCount
	}

	if res.TotalReviews > 0 {
		res.Accuracy = float64(correct) / float64(res.TotalReviews) * 100
	}

	return res, nil
}

// nextEaseFactor applies the SM-2 adjustment for a four-grade scale and
// clamps at the 1.3 floor.
func nextEaseFactor(ease float64, quality Quality) float64 {
	q := float64(quality)
	next := ease + (0.1 - (3-q)*(0.08+(3-q)*0.02))
	return math.Max(minEaseFactor, next)
}

func (s *Scheduler) nextReviewAt(reviewedAt time.Time, intervalDays int) time.Time {
	if s.conf.ExactDays {
		return reviewedAt.Add(time.Duration(intervalDays) * 24 * time.Hour)
	}
	return reviewedAt.AddDate(0, 0, intervalDays)
}

func (s *Scheduler) cardLock(cardID string) *sync.Mutex {
	s.mx.Lock()
	defer s.mx.Unlock()

	lock, ok := s.locks[cardID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[cardID] = lock
	}
	return lock
}

// notifyReviewed dispatches the outcome to the analytics sink without ever
// blocking or failing the review.
func (s *Scheduler) notifyReviewed(card *dal.Card, quality Quality) {
	event := card.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := s.sink.Notify(ctx, "card_reviewed", event.UserID, map[string]any{
			"word":          event.Label,
			"quality":       quality.String(),
			"interval_days": event.IntervalDays,
			"ease_factor":   event.EaseFactor,
			"repetitions":   event.Repetitions,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "failed to notify review event", "error", err, "card_id", event.ID)
		}
	}()
}
