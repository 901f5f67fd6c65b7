// Command main is the entry point for the confessional backend server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confessional/internal/config"
	"confessional/internal/janitor"
	"confessional/internal/observability"
	"confessional/internal/server"
)

// @title Confessional API
// @version 1.0
// @description Anonymous confession board driven by a chat gateway.

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the gateway JWT.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "confessional",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		SamplerRatio: cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	graph := srv.Graph()
	jan, err := janitor.New(cfg.JanitorCron, janitor.Jobs(graph.Services.Drafts, graph.Services.Moderation)...)
	if err != nil {
		log.Fatalf("Failed to configure janitor: %v", err)
	}
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go func() {
		if err := jan.Run(janitorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("janitor stopped: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		stopJanitor()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
