package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/oneauction/internal/config"
	"github.com/shinyyama/oneauction/internal/db"
	"github.com/shinyyama/oneauction/internal/mailer"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/server"
	"github.com/shinyyama/oneauction/internal/storage"
)

// set with -ldflags "-X main.gitSHA=... -X main.buildTime=..."
var (
	gitSHA    = "dev"
	buildTime = ""
)

const sweepInterval = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		Mailer: mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
	}
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.StorageBucket, cfg.CredentialsFile)
		if err != nil {
			log.Fatalf("storage init error: %v", err)
		}
		defer gcs.Close()
		deps.Store = gcs
	} else {
		deps.Store = storage.NewLocalStore(cfg.MediaDir, cfg.MediaURL)
	}
	if cfg.FirebaseProjectID != "" {
		client, err := appmw.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
		if err != nil {
			log.Printf("firebase auth disabled: %v", err)
		} else {
			deps.Verifier = client
		}
	}

	srv := server.New(cfg, deps, gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Printf("db connect error: %v", err)
			return
		}
		if err := db.Migrate(conn); err != nil {
			log.Printf("auto migrate error: %v", err)
			return
		}
		srv.SetDB(conn)
		log.Printf("database ready")
	}()

	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := srv.Sweep(ctx); err != nil {
					log.Printf("sweep error: %v", err)
				}
			}
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
