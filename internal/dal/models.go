package dal

import "time"

// DefaultEaseFactor is the ease assigned to a freshly discovered card.
const DefaultEaseFactor = 2.5

// Card is the unit of scheduling state for one (user, vocabulary item) pair.
// Content fields are immutable after creation; scheduling fields are owned by
// the scheduler, usage counters are informational only.
type Card struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Label         string `json:"label"`
	Term          string `json:"term"`
	Pronunciation string `json:"pronunciation,omitempty"`
	Note          string `json:"note,omitempty"`

	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	Repetitions  int       `json:"repetitions"`
	NextReview   time.Time `json:"next_review"`
	LastReview   time.Time `json:"last_review"`

	TimesSeen      int       `json:"times_seen"`
	CorrectCount   int       `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReviewCount is the total number of recorded reviews, successful or not.
func (c *Card) ReviewCount() int {
	return c.CorrectCount + c.IncorrectCount
}

// Clone returns a copy that callers may mutate without affecting the store.
func (c *Card) Clone() *Card {
	out := *c
	return &out
}
