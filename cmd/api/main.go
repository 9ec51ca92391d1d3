package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskfold.org/internal/auth"
	"taskfold.org/internal/config"
	"taskfold.org/internal/httpapi"
	"taskfold.org/internal/obs"
	"taskfold.org/internal/session"
	"taskfold.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg := config.Load()
	if cfg.PGDSN == "" {
		log.Fatal("missing DSN: set TASKFOLD_PG_DSN")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{
		Memory:      cfg.Argon2Memory,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	creds, err := auth.NewCredentials(store, hasher)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	tokens, err := auth.NewTokens(store,
		auth.WithActivationTTL(cfg.ActivationTTL),
		auth.WithResetTTL(cfg.ResetTTL),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	resolver, err := auth.NewResolver(store)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}
	sessions, err := session.NewManager(store, session.WithTTL(cfg.SessionTTL))
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	api, err := httpapi.New(httpapi.Options{
		Credentials:        creds,
		Tokens:             tokens,
		Resolver:           resolver,
		Sessions:           sessions,
		ReadyProbe:         httpapi.ReadyProbe{DB: store.DB()},
		Version:            version,
		CookieName:         cfg.SessionCookie,
		CookieSecure:       cfg.CookieSecure,
		BaseURL:            cfg.BaseURL,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	// Expired sessions become unreadable the moment they lapse; the sweeper
	// just reclaims the rows.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if err := store.PurgeExpiredSessions(sweepCtx, time.Now().UTC()); err != nil {
					obs.Error("session_purge_failed", err, nil)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskfold-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
