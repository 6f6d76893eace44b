package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/Batpurev0828/qbtusul/internal/api/http"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/config"
	"github.com/Batpurev0828/qbtusul/internal/db"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/logger"
	"github.com/Batpurev0828/qbtusul/internal/storage"
	syncx "github.com/Batpurev0828/qbtusul/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	// --- Stores ---
	var tests exam.Store = exam.NewSQLStore(dbh)
	if cfg.CacheDriver == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, serving tests without cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			tests = exam.NewCachedStore(tests, rdb, cfg.CacheTTL, log)
		}
	}
	events := syncx.NewEventRepo(dbh, "")
	attempts := attempt.NewService(tests, attempt.NewSQLRepository(dbh, events), log)

	// --- Auth ---
	authSvc := auth.NewService(auth.NewSQLUsers(dbh), cfg.AuthSecret,
		auth.WithTokenTTL(cfg.AuthTokenTTL),
		auth.WithSecureCookie(cfg.AuthCookieSecure),
		auth.WithLogger(log),
	)
	if cfg.SeedAdmin() {
		u, created, err := authSvc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info("admin ready", zap.String("email", u.Email), zap.Bool("created", created))
	}

	// --- Blobs ---
	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	defer closeBlobs()

	// --- Router ---
	r := api.NewRouter(api.Deps{
		Auth:           authSvc,
		Tests:          tests,
		Attempts:       attempts,
		Blobs:          blobs,
		Events:         events,
		Ready:          dbh.PingContext,
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins(),
		UploadMaxBytes: cfg.UploadMaxBytes,
		LoginLimiter:   api.NewRateLimiter(cfg.LoginRatePerMin),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.String("blobs", cfg.BlobDriver),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, func(), error) {
	if cfg.BlobDriver == "gcs" {
		gs, err := storage.NewGCSStore(ctx, storage.GCSOptions{
			Bucket:        cfg.GCSBucket,
			PublicBaseURL: cfg.GCSPublicURL,
			EmulatorHost:  cfg.GCSEmulator,
		})
		if err != nil {
			return nil, nil, err
		}
		return gs, func() { _ = gs.Close() }, nil
	}
	fs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL+"/assets")
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
