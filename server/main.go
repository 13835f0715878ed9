package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"llm-colosseum/server/battle"
	"llm-colosseum/server/config"
	"llm-colosseum/server/pool"
	"llm-colosseum/server/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	var migrate bool
	for _, a := range os.Args[1:] {
		if a == "--migrate" {
			migrate = true
		}
	}

	mp, err := pool.Load(cfg.ModelMapPath)
	if err != nil {
		log.Error("model map load failed", "path", cfg.ModelMapPath, "err", err)
		os.Exit(1)
	}
	log.Info("model pool loaded", "models", mp.Len())

	st, closeStore, err := openStore(cfg, migrate, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()
	if migrate {
		log.Info("migrated")
		return
	}

	handler := battle.NewHandler(st, mp.Candidates(), log)
	relay := NewRelay(cfg.BackendURL)
	srv := NewServer(cfg, st, handler, relay, log)

	httpSrv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     srv.Router(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: generation streams can run for minutes.
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", "addr", cfg.Addr, "backend", cfg.BackendURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}

// openStore picks Postgres when a database URL is configured, otherwise an
// in-process store that loses sessions and ratings on restart.
func openStore(cfg *config.Config, migrate bool, log *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if migrate {
			return nil, nil, errors.New("--migrate requires ARENA_DATABASE_URL")
		}
		log.Warn("no database configured; using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close(ctx)
		return nil, nil, err
	}
	if migrate || cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close(ctx)
			return nil, nil, err
		}
	}
	return db, func() { db.Close(context.Background()) }, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
