package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	appctx "github.com/lingolens/srs-service/internal/context"
)

type (
	AuthHandler struct {
		apiKey       string
		jwtProcessor *JWTProcessor
		expiresIn    time.Duration

		log *slog.Logger
	}

	tokenRequest struct {
		UserID string `json:"user_id" validate:"required,min=1"`
		APIKey string `json:"api_key" validate:"required,min=1"`
	}
)

func NewAuthHandler(apiKey string, jwtProcessor *JWTProcessor, expiresIn time.Duration, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		apiKey:       apiKey,
		jwtProcessor: jwtProcessor,
		expiresIn:    expiresIn,

		log: log,
	}
}

// Token exchanges the mobile client's api key for a user-scoped access token.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, BadRequestError)
	}

	if err := c.Validate(&req); err != nil {
		h.log.DebugContext(c.Request().Context(), "failed to validate request", "error", err)
		return err
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		h.log.DebugContext(c.Request().Context(), "invalid api key", "user_id", req.UserID)
		return c.JSON(http.StatusForbidden, ErrorResponse{Message: "invalid api key"})
	}

	token, err := h.jwtProcessor.ToAccessToken(req.UserID)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "failed to create access token", "error", err)
		return c.JSON(http.StatusInternalServerError, InternalServerError)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token":      token,
		"expires_in": int(h.expiresIn.Seconds()),
	})
}

func AuthMiddleware(jwtProcessor *JWTProcessor, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				log.DebugContext(c.Request().Context(), "missing bearer token")
				return c.JSON(http.StatusUnauthorized, UnauthorizedError)
			}

			userID, err := jwtProcessor.ParseAccessToken(token)
			if err != nil {
				log.DebugContext(c.Request().Context(), "failed to parse access token", "error", err)
				return c.JSON(http.StatusUnauthorized, UnauthorizedError)
			}

			ctx := appctx.WithUserID(c.Request().Context(), userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
