package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/httpserver"
	"authcore/internal/logging"
	"authcore/internal/password"
	"authcore/internal/session"
	"authcore/internal/users"
)

func main() {
	ctx := context.Background()
	logger := logging.New()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("AUTHCORE_JWT_SECRET must be set")
	}

	dbConn, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	if err := db.RunMigrations(ctx, dbConn, "sql"); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	hasher := password.NewHasher(cfg.BcryptCost)
	store := users.NewStore(dbConn)
	if cfg.SeedPath != "" {
		if err := store.SeedFromFile(ctx, cfg.SeedPath, hasher); err != nil {
			log.Fatalf("seed users: %v", err)
		}
	}
	sessions := session.NewService(cfg.JWTSecret, cfg.TokenTTL)

	handler := httpserver.NewRouter(logger, sessions, store, hasher)
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Shutdown applies its own grace period.
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
