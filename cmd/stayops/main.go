package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"stayops/internal/api"
	"stayops/internal/kvstore"
	"stayops/internal/scheduler"
	"stayops/internal/taskstore"
)

func main() {
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envOr("STAYOPS_ADDR", ":8080"), "HTTP bind address")
		backend    = flag.String("store", envOr("STAYOPS_STORE", "sqlite"), "store backend: sqlite or postgres")
		dbPath     = flag.String("db", envOr("STAYOPS_DB", "stayops.db"), "SQLite DB path")
		pgURL      = flag.String("pg-url", os.Getenv("STAYOPS_PG_URL"), "Postgres URL (store=postgres)")
		digestCron = flag.String("digest-cron", envOr("STAYOPS_DIGEST_CRON", "0 8 * * *"), "cron expression for the overdue digest")
		properties = flag.String("properties", os.Getenv("STAYOPS_PROPERTIES"), "comma-separated property ids for the digest sweep")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	secret := []byte(os.Getenv("STAYOPS_JWT_SECRET"))
	if len(secret) == 0 {
		log.Fatal().Msg("STAYOPS_JWT_SECRET is required")
	}

	if err := scheduler.ValidateCronExpression(*digestCron); err != nil {
		log.Fatal().Err(err).Str("expr", *digestCron).Msg("invalid digest cron expression")
	}

	store, err := openStore(*backend, *dbPath, *pgURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	adapter := taskstore.New(store)

	ctx, cancel := context.WithCancel(context.Background())

	var propertyIDs []string
	for _, p := range strings.Split(*properties, ",") {
		if p = strings.TrimSpace(p); p != "" {
			propertyIDs = append(propertyIDs, p)
		}
	}
	if len(propertyIDs) > 0 {
		digest, err := scheduler.NewService(adapter, *digestCron, propertyIDs)
		if err != nil {
			log.Fatal().Err(err).Msg("digest service")
		}
		go digest.Start(ctx)
	}

	srv := &http.Server{Addr: *addr, Handler: api.NewServer(adapter, secret)}
	go func() {
		log.Info().Str("addr", *addr).Str("store", *backend).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}

func openStore(backend, dbPath, pgURL string) (kvstore.Store, error) {
	switch backend {
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", dbPath)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1) // SQLite single writer
		if err := kvstore.EnsureSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		return kvstore.NewSQLite(db), nil
	case "postgres":
		if pgURL == "" {
			return nil, fmt.Errorf("store=postgres requires -pg-url or STAYOPS_PG_URL")
		}
		return kvstore.OpenPostgres(context.Background(), pgURL)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
