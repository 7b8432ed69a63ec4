package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"savdo.org/internal/auth"
	"savdo.org/internal/config"
	"savdo.org/internal/httpapi"
	"savdo.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.EphemeralSecrets {
		logger.Warn("token secrets generated at startup; every restart invalidates all outstanding tokens")
	}

	// Postgres-backed user store when a DSN is configured, in-process otherwise.
	var (
		db    *sql.DB
		users auth.UserStore
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		users = auth.NewPGUserStore(db)
	} else {
		logger.Warn("no database configured, using in-process user store")
		users = auth.NewMemoryUserStore(nil)
	}

	// Redis-backed session store and revocation ledger when a shared cache is
	// configured; the in-process fallbacks need the sweeper.
	var (
		rdb         *redis.Client
		sessions    auth.SessionStore
		revocations auth.RevocationLedger
		sweepables  []auth.Sweepable
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping", zap.Error(err))
		}
		cancel()
		sessions = auth.NewRedisSessionStore(rdb, logger, cfg.RefreshTokenTTL, cfg.ActivityExtension, nil)
		revocations = auth.NewRedisRevocationLedger(rdb, logger, nil)
	} else {
		logger.Warn("no redis configured, using in-process session and revocation stores")
		mem := auth.NewMemorySessionStore(cfg.RefreshTokenTTL, cfg.ActivityExtension, nil)
		ledger := auth.NewMemoryRevocationLedger(nil)
		sessions, revocations = mem, ledger
		sweepables = append(sweepables, mem, ledger)
	}

	codec, err := auth.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}
	hasher := auth.NewHasher(cfg.BcryptCost)

	svc, err := auth.NewService(users, sessions, revocations, codec, hasher,
		auth.WithLogger(logger),
		auth.WithMaxSessions(cfg.MaxSessionsPerUser),
		auth.WithAutoRefresh(cfg.AutoRefresh),
		auth.WithRefreshGrace(cfg.RefreshGracePeriod),
	)
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if len(sweepables) > 0 {
		sweeper := auth.NewSweeper(cfg.SweepInterval, logger, sweepables...)
		go sweeper.Run(rootCtx)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db, Redis: rdb}, logger, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	logger.Info("starting savdo-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("environment", cfg.Environment),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("stopped")
}
