package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/modguard/modguard/internal/audit"
	"github.com/modguard/modguard/internal/config"
	"github.com/modguard/modguard/internal/dedup"
	"github.com/modguard/modguard/internal/engine"
	"github.com/modguard/modguard/internal/identity"
	"github.com/modguard/modguard/internal/messaging"
	"github.com/modguard/modguard/internal/metrics"
	"github.com/modguard/modguard/internal/ratelimit"
	"github.com/modguard/modguard/internal/textmatch"
	"github.com/modguard/modguard/internal/warnings"
)

func main() {
	log.Println("Starting modguard moderation service...")

	cfg := config.Load()
	if len(cfg.Groups) == 0 {
		log.Fatal("MODERATED_GROUPS must name at least one group")
	}
	if len(cfg.Authorized) == 0 {
		log.Fatal("AUTHORIZED_NUMBERS must name at least one operator")
	}

	// Warning store. A corrupt prior file is quarantined, not fatal.
	warningStore := warnings.NewStore(cfg.WarningsFile)
	if err := warningStore.Load(); err != nil {
		log.Printf("[main] warning store: %v (continuing with empty state)", err)
	}

	ledger := dedup.NewLedger(cfg.DedupTTL, cfg.DedupMax)
	matcher := textmatch.NewMatcher(cfg.BannedTerms)
	resolver := identity.NewResolver(cfg.CountryCode)

	// Optional Redis reply throttling.
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Printf("[main] redis unavailable, reply throttling disabled: %v", err)
		} else {
			limiter = ratelimit.NewLimiter(rdb)
			defer rdb.Close()
		}
	}

	// Optional Postgres audit trail.
	var auditStore *audit.Store
	if cfg.PostgresDSN != "" {
		db, err := openAuditDB(cfg.PostgresDSN)
		if err != nil {
			log.Printf("[main] postgres unavailable, audit trail disabled: %v", err)
		} else {
			auditStore = audit.NewStore(db)
			defer db.Close()
		}
	}

	// NATS transport bridge to the chat-client sidecar.
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NATSURL
	bridge, err := messaging.NewBridge(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	eng := engine.New(engine.Config{
		Groups:        cfg.Groups,
		Authorized:    cfg.Authorized,
		Threshold:     cfg.Threshold,
		InitialActive: cfg.Active,
		ResetOnStart:  cfg.ResetOnStart,
	}, engine.Deps{
		Transport: bridge,
		Resolver:  resolver,
		Matcher:   matcher,
		Warnings:  warningStore,
		Ledger:    ledger,
		Limiter:   limiter,
		Audit:     auditStore,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	ledger.StartTrimLoop(ctx, cfg.DedupTrimInterval)
	warningStore.StartAutosave(ctx, cfg.AutosaveInterval)

	if err := bridge.SubscribeMessages(eng.Enqueue); err != nil {
		log.Fatalf("failed to subscribe to inbound messages: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("[main] metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("[main] metrics server: %v", err)
			}
		}()
	}

	log.Printf("modguard running")
	log.Printf("  groups:        %v", cfg.Groups)
	log.Printf("  operators:     %d", len(cfg.Authorized))
	log.Printf("  banned_terms:  %d", len(cfg.BannedTerms))
	log.Printf("  threshold:     %d", cfg.Threshold)
	log.Printf("  active:        %v", cfg.Active)
	log.Printf("  warnings_file: %s", cfg.WarningsFile)
	log.Printf("  nats_url:      %s", cfg.NATSURL)

	// Graceful shutdown: stop intake, drain the queue, flush the store.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	cancel()
	select {
	case <-eng.Done():
	case <-time.After(30 * time.Second):
		log.Printf("[main] queue drain timed out")
	}

	if err := warningStore.Flush(); err != nil {
		log.Printf("[main] final flush failed: %v", err)
	}
	bridge.Close()
}

// openAuditDB connects to Postgres and applies pending migrations.
func openAuditDB(dsn string) (*sql.DB, error) {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, err
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return nil, srcErr
	}
	if dbErr != nil {
		return nil, dbErr
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
