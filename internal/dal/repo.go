package dal

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type (
	// CardRepository owns the canonical card collection: at most one card per
	// (user, case-insensitive label).
	CardRepository interface {
		FindOrCreate(ctx context.Context, userID, label, term, pronunciation, note string) (*Card, error)
		GetByID(ctx context.Context, id string) (*Card, error)
		Update(ctx context.Context, card *Card) error
		ListByUser(ctx context.Context, userID string) ([]Card, error)
		ListUserIDs(ctx context.Context) ([]string, error)
		ClearAll(ctx context.Context) error
	}

	// KeyValue is the durable persistence contract the card store mirrors to.
	// Get reports false for a missing key instead of an error.
	KeyValue interface {
		Get(ctx context.Context, key string) (string, bool, error)
		Set(ctx context.Context, key, value string) error
		Remove(ctx context.Context, key string) error
	}
)
