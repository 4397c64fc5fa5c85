package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/config"
	"hearthside.org/internal/gateway"
	"hearthside.org/internal/obs"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resolve"
	"hearthside.org/internal/resource"
	"hearthside.org/internal/store"
	"hearthside.org/internal/store/pg"
	"hearthside.org/internal/usage"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.InitLogger("info", os.Stderr)
		l := obs.Logger()
		l.Fatal().Err(err).Msg("load config")
	}

	obs.InitLogger(cfg.LogLevel, os.Stderr)
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	// Postgres when a DSN is configured, in-memory otherwise. The memory
	// store keeps local development and CI free of external services.
	var (
		st store.Store
		db *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres")
		}
		st = pgStore
		db = pgStore.DB()
		defer pgStore.Close()
	} else {
		log.Warn().Msg("no DSN configured, using in-memory store")
		st = store.NewMemory()
	}

	resolver := auth.NewResolver(cfg.ServiceKey, cfg.AuthSecret, auth.NewStoreProfiles(st))
	entities := resolve.New(st, cfg.ResolverCacheSize, cfg.ResolverCacheTTL)
	engine := resource.NewEngine(st, entities)

	api, err := gateway.New(gateway.Options{
		ReadyProbe:   gateway.ReadyProbe{DB: db},
		Version:      version,
		Registry:     resource.DefaultRegistry(),
		Matrix:       policy.Default(),
		Engine:       engine,
		Resolver:     resolver,
		Usage:        usage.NewLogger(st, log),
		Logger:       log,
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build gateway")
	}
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting hearthside-gateway")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
}
