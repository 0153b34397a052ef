package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/taskconvert/internal/aiclient"
	"github.com/you/taskconvert/internal/config"
	"github.com/you/taskconvert/internal/dispatch"
	"github.com/you/taskconvert/internal/httpapi"
	"github.com/you/taskconvert/internal/pipeline"
	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/retention"
	"github.com/you/taskconvert/internal/storage"
	"github.com/you/taskconvert/internal/validate"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.AppEnv)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store = storage.NewMemoryStore(nil)
	if cfg.PostgresDSN != "" {
		if err := runMigrations(cfg); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("connecting to postgres", zap.Error(err))
		}
		defer pool.Close()
		store = storage.NewPostgresStore(pool, nil)
		logger.Info("job store: postgres")
	} else {
		logger.Info("job store: memory")
	}

	var resStore results.Store = results.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		resStore = results.NewRedisStore(rdb, cfg.ResultTTL)
		logger.Info("result store: redis")
	} else {
		logger.Info("result store: memory")
	}

	ai := aiclient.New(cfg.AIBaseURL, cfg.AITimeout, logger.Named("ai"))
	pipe := pipeline.New(ai, ai)

	disp := dispatch.New(store, resStore, pipe, cfg.Workers, cfg.QueueSize, cfg.ProcessTimeout, logger.Named("dispatch"))
	disp.Start()
	defer disp.Stop()

	api := httpapi.NewServer(validate.New(cfg.MaxAudioBytes()), store, resStore, disp, logger.Named("http"))
	srv := &http.Server{Addr: cfg.APIAddr, Handler: api.Handler()}

	janitor := retention.New(store, resStore, cfg.JobMaxAge, cfg.CleanupInterval, logger.Named("retention"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return janitor.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("exit", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(appEnv string) *zap.Logger {
	if appEnv == "dev" {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return l
	}
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// runMigrations applies the goose migrations through the stdlib pgx driver;
// pgxpool stays query-only.
func runMigrations(cfg config.Config) error {
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return errors.Wrap(err, "open postgres")
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set dialect")
	}
	return errors.Wrap(goose.Up(db, cfg.MigrationsDir), "goose up")
}
