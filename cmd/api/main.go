package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/lingolens/srs-service/internal/analytics"
	"github.com/lingolens/srs-service/internal/api"
	"github.com/lingolens/srs-service/internal/config"
	"github.com/lingolens/srs-service/internal/dal/kv"
	"github.com/lingolens/srs-service/internal/dal/sqlite"
	"github.com/lingolens/srs-service/internal/schedule"
	"github.com/lingolens/srs-service/internal/srs"
)

var (
	// Version is set via -ldflags at build time
	Version = "dev" //nolint:gochecknoglobals // must be global to be replaced at build time
	// BuildTime is set via -ldflags at build time
	BuildTime = "unknown" //nolint:gochecknoglobals // must be global to be replaced at build time
)

const (
	exitCodeOK int = iota
	exitCodeConfigParse
	exitCodeDBConnect
	exitCodeServerStart
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	go func() {
		<-sigs
		cancel()
	}()
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	conf, err := config.NewAPI(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get config", "error", err) //nolint:sloglint // ignore
		return exitCodeConfigParse
	}
	log := mustLogger(conf.Dev)

	db, err := sql.Open("sqlite", conf.DB.Path)
	if err != nil {
		log.ErrorContext(ctx, "failed to open database", "error", err)
		return exitCodeDBConnect
	}
	defer db.Close()

	keyValue, err := sqlite.NewKeyValue(ctx, db)
	if err != nil {
		log.ErrorContext(ctx, "failed to init key-value store", "error", err)
		return exitCodeDBConnect
	}

	store := kv.NewCardStore(ctx, keyValue, log)
	sink := eventSink(conf, log)
	scheduler := srs.NewScheduler(store, sink, srs.Config{ExactDays: conf.Scheduling.ExactDays}, log)

	conf.BuildInfo.Version = Version
	conf.BuildInfo.BuildTime = BuildTime
	router := api.NewRouter(ctx, conf, api.Dependencies{
		Repo:      store,
		Scheduler: scheduler,
		Logger:    log,
	})
	log.InfoContext(ctx, "starting api server",
		"version", Version,
		"build_time", BuildTime,
		"address", conf.Server.Addr,
	)

	server := &http.Server{
		ReadHeaderTimeout: conf.Server.ReadHeaderTimeout,
		Addr:              conf.Server.Addr,
		Handler:           router,
	}

	go func() {
		<-ctx.Done()
		cCtx, cCancel := context.WithTimeout(context.Background(), 15*time.Second) //nolint:mnd // ignore mnd
		defer cCancel()

		if sErr := server.Shutdown(cCtx); sErr != nil {
			log.ErrorContext(cCtx, "failed to shutdown api server", "error", sErr)
		}
	}()

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if sErr := server.ListenAndServe(); sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
			return sErr
		}
		return nil
	})
	group.Go(func() error {
		return schedule.StartDueDigestSchedule(
			gCtx,
			conf.Scheduling.DueDigestInterval,
			conf.Scheduling.DigestLocation,
			store,
			scheduler,
			sink,
			log,
		)
	})

	if err = group.Wait(); err != nil {
		log.ErrorContext(ctx, "failed to run api server", "error", err)
		return exitCodeServerStart
	}

	log.InfoContext(ctx, "api server is stopped")

	return exitCodeOK
}

func eventSink(conf *config.API, log *slog.Logger) srs.EventSink {
	if conf.Analytics.Endpoint == "" {
		return analytics.Noop{}
	}
	return analytics.NewClient(conf.Analytics.Endpoint, conf.Analytics.Token, log)
}

func mustLogger(dev bool) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if dev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler)
}
