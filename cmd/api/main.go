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

	"fintrack.org/internal/auth"
	"fintrack.org/internal/config"
	"fintrack.org/internal/httpapi"
	"fintrack.org/internal/mail"
	"fintrack.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.AuthSecret == "" {
		log.Fatal("FINTRACK_AUTH_SECRET is required")
	}

	// Directory: PostgreSQL when a DSN is configured, in-memory otherwise.
	// The in-memory directory is for local development only.
	var (
		dir auth.Directory
		db  *sql.DB
	)
	if cfg.PGDSN != "" {
		pg, err := auth.OpenPG(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		dir = pg
		db = pg.DB()
	} else {
		log.Print("FINTRACK_PG_DSN not set, using in-memory directory")
		mem := auth.NewMemoryDirectory()
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := auth.EnsureDefaults(seedCtx, mem); err != nil {
			cancel()
			log.Fatalf("seed defaults: %v", err)
		}
		cancel()
		dir = mem
	}

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		auth.WithAccessTTL(cfg.TokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithResetTTL(cfg.ResetTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	sessions := auth.NewSessionPolicy(cfg.InactivityWindow())

	var mailer auth.ResetMailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		log.Print("FINTRACK_SMTP_HOST not set, reset mails go to the log")
		mailer = mail.LogMailer{}
	}

	gateway, err := auth.NewGateway(dir, tokens, sessions, mailer, cfg.AppURL)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	api := httpapi.New(gateway, httpapi.ReadyProbe{DB: db}, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fintrack-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = dir.Close()
	log.Println("Stopped")
}
