package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lingolens/srs-service/internal/dal"
)

const digestTimeout = 1 * time.Minute

type (
	UserLister interface {
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	DueLister interface {
		DueCards(ctx context.Context, userID string, asOf time.Time) ([]dal.Card, error)
	}

	Sink interface {
		Notify(ctx context.Context, event, userID string, properties map[string]any) error
	}
)

// StartDueDigestSchedule periodically emits a due_digest analytics event per
// known user with their current due-card count. Observational only; never
// mutates cards. Blocks until ctx is done.
func StartDueDigestSchedule(ctx context.Context, interval time.Duration, location string, users UserLister, due DueLister, sink Sink, log *slog.Logger) error {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return fmt.Errorf("load digest location: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
			// Keep quiet outside waking hours in the configured location.
			if time.Now().In(loc).Hour() < 9 || time.Now().In(loc).Hour() > 23 {
				continue
			}
		}

		userIDs, err := users.ListUserIDs(ctx)
		if err != nil {
			log.Error("failed to list users for due digest", "error", err)
			continue
		}

		for _, userID := range userIDs {
			ctx, cancel := context.WithTimeout(ctx, digestTimeout)
			if err := publishDigest(ctx, userID, due, sink); err != nil {
				log.Error("failed to publish due digest", "error", err, "user_id", userID)
			}
			cancel()
		}
	}
}

func publishDigest(ctx context.Context, userID string, due DueLister, sink Sink) error {
	cards, err := due.DueCards(ctx, userID, time.Now())
	if err != nil {
		return fmt.Errorf("get due cards: %w", err)
	}
	if len(cards) == 0 {
		return nil
	}

	if err := sink.Notify(ctx, "due_digest", userID, map[string]any{
		"due_cards": len(cards),
	}); err != nil {
		return fmt.Errorf("notify digest: %w", err)
	}

	return nil
}
