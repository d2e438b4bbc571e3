package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	appctx "github.com/lingolens/srs-service/internal/context"
	"github.com/lingolens/srs-service/internal/dal"
	"github.com/lingolens/srs-service/internal/srs"
)

type (
	Card struct {
		ID            string    `json:"id"`
		Label         string    `json:"label"`
		Term          string    `json:"term"`
		Pronunciation string    `json:"pronunciation,omitempty"`
		Note          string    `json:"note,omitempty"`
		EaseFactor    float64   `json:"ease_factor"`
		IntervalDays  int       `json:"interval_days"`
		Repetitions   int       `json:"repetitions"`
		NextReview    time.Time `json:"next_review"`
		LastReview    time.Time `json:"last_review"`
		TimesSeen     int       `json:"times_seen"`
	}

	discoverRequest struct {
		Label         string `json:"label" validate:"required,min=1"`
		Term          string `json:"term" validate:"required,min=1"`
		Pronunciation string `json:"pronunciation"`
		Note          string `json:"note"`
	}

	reviewRequest struct {
		CardID  string `json:"card_id" validate:"required,uuid"`
		Quality string `json:"quality" validate:"required,oneof=again hard good easy"`
	}

	dueQueryParams struct {
		AsOf time.Time `query:"as_of"`
	}

	CardsHandler struct {
		repo      dal.CardRepository
		scheduler *srs.Scheduler
		log       *slog.Logger
	}
)

func NewCardsHandler(repo dal.CardRepository, scheduler *srs.Scheduler, log *slog.Logger) *CardsHandler {
	return &CardsHandler{
		repo:      repo,
		scheduler: scheduler,
		log:       log,
	}
}

// Discover registers a newly recognized vocabulary item for the user.
// Re-discovering an already known label bumps its usage counter instead of
// creating a duplicate.
func (h *CardsHandler) Discover(c echo.Context) error {
	userID := appctx.MustUserIDFromContext(c.Request().Context())

	var req discoverRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	card, err := h.repo.FindOrCreate(c.Request().Context(), userID, req.Label, req.Term, req.Pronunciation, req.Note)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to find or create card", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, toView(card))
}

func (h *CardsHandler) Review(c echo.Context) error {
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	quality, err := srs.ParseQuality(req.Quality)
	if err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to parse quality", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	card, err := h.scheduler.Review(c.Request().Context(), req.CardID, quality)
	if err != nil {
		if errors.Is(err, dal.ErrNotFound) {
			// Non-retryable: the client offered a review on a card that does
			// not exist.
			return c.JSON(http.StatusNotFound, CardNotFoundError)
		}
		h.log.ErrorContext(c.Request().Context(), "failed to review card", "error", err, "card_id", req.CardID)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, toView(card))
}

func (h *CardsHandler) Due(c echo.Context) error {
	userID := appctx.MustUserIDFromContext(c.Request().Context())

	var qp dueQueryParams
	if err := c.Bind(&qp); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}
	asOf := qp.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	cards, err := h.scheduler.DueCards(c.Request().Context(), userID, asOf)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to get due cards", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": toViews(cards),
		"total": len(cards),
	})
}

func (h *CardsHandler) List(c echo.Context) error {
	userID := appctx.MustUserIDFromContext(c.Request().Context())

	cards, err := h.repo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to list cards", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items": toViews(cards),
		"total": len(cards),
	})
}

func (h *CardsHandler) Stats(c echo.Context) error {
	userID := appctx.MustUserIDFromContext(c.Request().Context())

	stats, err := h.scheduler.Stats(c.Request().Context(), userID)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to get stats", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, stats)
}

func (h *CardsHandler) Clear(c echo.Context) error {
	if err := h.repo.ClearAll(c.Request().Context()); err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to clear cards", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "message": "cards cleared"})
}

func toView(card *dal.Card) Card {
	return Card{
		ID:            card.ID,
		Label:         card.Label,
		Term:          card.Term,
		Pronunciation: card.Pronunciation,
		Note:          card.Note,
		EaseFactor:    card.EaseFactor,
		IntervalDays:  card.IntervalDays,
		Repetitions:   card.Repetitions,
		NextReview:    card.NextReview,
		LastReview:    card.LastReview,
		TimesSeen:     card.TimesSeen,
	}
}

func toViews(cards []dal.Card) []Card {
	views := make([]Card, len(cards))
	for i := range cards {
		views[i] = toView(&cards[i])
	}
	return views
}
