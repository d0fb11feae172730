// Command devapi serves the in-memory social API for local development.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/fakeapi"
	"feedsync/internal/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.SetLevel(cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(cfg.TracingConfig("feedsync-devapi", "dev"))
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv := fakeapi.New(fakeapi.Config{JWTSecret: cfg.JWTSecret, CookieName: cfg.SessionCookie})

	if cfg.SeedUsers > 0 {
		users, err := srv.Seed(fakeapi.SeedOptions{Users: cfg.SeedUsers})
		if err != nil {
			log.Fatalf("Failed to seed users: %v", err)
		}
		for _, u := range users {
			observability.GlobalLogger.Info("seeded user", "id", u.ID, "name", u.Name, "email", u.Email, "private", u.Private)
		}
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down devapi...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	log.Printf("devapi starting on port %s...", cfg.DevAPIPort)
	if err := srv.Listen(":" + cfg.DevAPIPort); err != nil {
		log.Fatal(err)
	}
}
