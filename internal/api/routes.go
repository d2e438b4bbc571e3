package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/lingolens/srs-service/internal/config"
	"github.com/lingolens/srs-service/internal/dal"
	"github.com/lingolens/srs-service/internal/srs"
)

type (
	Dependencies struct {
		Repo      dal.CardRepository
		Scheduler *srs.Scheduler
		Logger    *slog.Logger
	}

	Validator struct {
		validator *validator.Validate
	}
)

func (v *Validator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewRouter(ctx context.Context, conf *config.API, deps Dependencies) http.Handler {
	e := echo.New()
	e.Validator = &Validator{validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(loggingMiddleware(ctx, deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(conf.HTTP.RateLimit))))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.HTTP.CORS.AllowOrigins,
	}))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: conf.HTTP.ProcessTimeout,
	}))
	e.Use(middleware.Secure())

	e.HTTPErrorHandler = HTTPErrorHandler(deps.Logger)

	jwtProcessor := NewJWTProcessor(conf.HTTP.JWT)
	auth := NewAuthHandler(conf.Auth.APIKey, jwtProcessor, conf.HTTP.JWT.ExpiresIn, deps.Logger)

	e.POST("/auth/token", auth.Token)

	securedGroup := e.Group("", AuthMiddleware(jwtProcessor, deps.Logger))

	cards := NewCardsHandler(deps.Repo, deps.Scheduler, deps.Logger)
	securedGroup.POST("/cards", cards.Discover)
	securedGroup.GET("/cards", cards.List)
	securedGroup.POST("/cards/review", cards.Review)
	securedGroup.GET("/cards/due", cards.Due)
	securedGroup.GET("/stats", cards.Stats)
	securedGroup.DELETE("/cards", cards.Clear)

	return e
}

func loggingMiddleware(ctx context.Context, log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.LogAttrs(ctx, slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
				)
			} else {
				log.LogAttrs(ctx, slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
				)
			}
			return nil
		},
	})
}
