package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingolens/srs-service/internal/dal"
)

// cardsKey is the fixed storage key the whole collection is persisted under.
const cardsKey = "srs:cards:v1"

// CardStore keeps the authoritative card collection in memory and mirrors it
// to a dal.KeyValue after every mutation (write-through). Single-process,
// single-writer model: persistence failures after a successful in-memory
// mutation are logged, not surfaced.
type CardStore struct {
	kv  dal.KeyValue
	log *slog.Logger

	mx    sync.RWMutex
	cards map[string]*dal.Card

	now func() time.Time
}

func NewCardStore(ctx context.Context, keyValue dal.KeyValue, log *slog.Logger) *CardStore {
	s := &CardStore{
		kv:    keyValue,
		log:   log,
		cards: make(map[string]*dal.Card, 100),
		now:   time.Now,
	}

	if err := s.Load(ctx); err != nil {
		// A corrupt or unreadable store must not block startup.
		log.ErrorContext(ctx, "failed to load card collection, starting empty", "error", err)
	}

	return s
}

func (s *CardStore) FindOrCreate(ctx context.Context, userID, label, term, pronunciation, note string) (*dal.Card, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	now := s.now()
	for _, card := range s.cards {
		if card.UserID != userID || !strings.EqualFold(card.Label, label) {
			continue
		}

		// Re-discovery: bump usage only, scheduling fields stay untouched.
		card.TimesSeen++
		card.LastReview = now
		s.persistLocked(ctx)
		return card.Clone(), nil
	}

	card := &dal.Card{
		ID:            uuid.NewString(),
		UserID:        userID,
		Label:         label,
		Term:          term,
		Pronunciation: pronunciation,
		Note:          note,

		EaseFactor:   dal.DefaultEaseFactor,
		IntervalDays: 0,
		Repetitions:  0,
		NextReview:   now,
		LastReview:   now,

		TimesSeen: 1,
		CreatedAt: now,
	}
	s.cards[card.ID] = card
	s.persistLocked(ctx)

	return card.Clone(), nil
}

func (s *CardStore) GetByID(_ context.Context, id string) (*dal.Card, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, dal.ErrNotFound
	}
	return card.Clone(), nil
}

func (s *CardStore) Update(ctx context.Context, card *dal.Card) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.cards[card.ID]; !ok {
		return dal.ErrNotFound
	}
	s.cards[card.ID] = card.Clone()
	s.persistLocked(ctx)

	return nil
}

// ListByUser returns the user's cards in no particular order; callers that
// need ordering must sort.
func (s *CardStore) ListByUser(_ context.Context, userID string) ([]dal.Card, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	res := make([]dal.Card, 0, len(s.cards))
	for _, card := range s.cards {
		if card.UserID == userID {
			res = append(res, *card.Clone())
		}
	}
	return res, nil
}

func (s *CardStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	seen := make(map[string]bool, len(s.cards))
	res := make([]string, 0, len(s.cards))
	for _, card := range s.cards {
		if !seen[card.UserID] {
			seen[card.UserID] = true
			res = append(res, card.UserID)
		}
	}
	sort.Strings(res)

	return res, nil
}

func (s *CardStore) ClearAll(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.cards = make(map[string]*dal.Card, 100)
	if err := s.kv.Remove(ctx, cardsKey); err != nil {
		return fmt.Errorf("clear persisted cards: %w", err)
	}

	return nil
}

// Save persists the full collection and reports failures, unlike the
// write-through path which only logs them.
func (s *CardStore) Save(ctx context.Context) error {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.saveLocked(ctx)
}

// Load replaces the in-memory collection with the persisted one. A missing
// key is an empty collection, not an error.
func (s *CardStore) Load(ctx context.Context) error {
	value, ok, err := s.kv.Get(ctx, cardsKey)
	if err != nil {
		return fmt.Errorf("read persisted cards: %w", err)
	}

	cards := make(map[string]*dal.Card, 100)
	if ok {
		var persisted []dal.Card
		if err = json.Unmarshal([]byte(value), &persisted); err != nil {
			return fmt.Errorf("unmarshal persisted cards: %w", err)
		}
		for i := range persisted {
			cards[persisted[i].ID] = &persisted[i]
		}
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	s.cards = cards

	return nil
}

func (s *CardStore) persistLocked(ctx context.Context) {
	if err := s.saveLocked(ctx); err != nil {
		s.log.ErrorContext(ctx, "failed to persist card collection", "error", err)
	}
}

func (s *CardStore) saveLocked(ctx context.Context) error {
	// Stable snapshot order keeps persisted payloads reproducible.
	snapshot := make([]dal.Card, 0, len(s.cards))
	for _, card := range s.cards {
		snapshot = append(snapshot, *card)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ID < snapshot[j].ID
	})

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cards: %w", err)
	}

	if err = s.kv.Set(ctx, cardsKey, string(data)); err != nil {
		return fmt.Errorf("write persisted cards: %w", err)
	}

	return nil
}
