package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sketchrule/api/internal/app"
	"sketchrule/api/internal/blob"
	"sketchrule/api/internal/config"
	"sketchrule/api/internal/feedback"
	"sketchrule/api/internal/kv"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var store kv.KV
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		log.Printf("Using Postgres for feedback storage")
		pgStore, err := kv.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres connection failed: %v", err)
		}
		store = pgStore
	} else {
		log.Printf("Using Redis for feedback storage")
		redisStore, err := kv.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		store = redisStore
	}
	defer store.Close()

	feedbackStore := feedback.NewStore(store, cfg.StoreTimeout)

	var service *app.Service
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		images, err := blob.NewImageStore(ctx, blob.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("image store connection failed: %v", err)
		}
		log.Printf("Feedback image storage enabled (bucket %s)", cfg.S3Bucket)
		service = app.NewWithImageStore(cfg, feedbackStore, images)
	} else {
		service = app.New(cfg, feedbackStore)
	}

	// In-process stand-in for the external cron facility. Promotion stays
	// externally triggerable via POST /api/promote either way.
	if cfg.PromoteInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.PromoteInterval)
			defer ticker.Stop()
			for range ticker.C {
				summary, err := service.Promote(context.Background())
				if err != nil {
					log.Printf("scheduled promotion failed: %v", err)
					continue
				}
				log.Printf("scheduled promotion: promoted=%d skipped=%d errors=%d",
					summary.Promoted, summary.Skipped, summary.Errors)
			}
		}()
		log.Printf("Promotion scheduled every %s", cfg.PromoteInterval)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Sketchrule API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
