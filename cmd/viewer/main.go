package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pefman/w40k-odds/internal/api"
	"github.com/pefman/w40k-odds/internal/config"
	"github.com/pefman/w40k-odds/internal/logger"
	"github.com/pefman/w40k-odds/internal/server"
)

// Build metadata, set via -ldflags.
var (
	buildVersion = "dev"
	buildTime    = ""
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the viewer config YAML file")
	flag.Parse()

	// Logger first, before anything logs.
	logConfig, err := logger.LoadConfig(*configFile)
	if err != nil {
		log.Printf("logging config: %v (using defaults)", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Close()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load config, using defaults", "path", *configFile, "error", err)
	}

	client := api.NewClient(api.Config{
		BaseURL:  cfg.Simulation.BaseURL,
		Endpoint: cfg.Simulation.Endpoint,
		Timeout:  cfg.Simulation.Timeout(),
	})
	srv, err := server.New(server.Options{
		Config:       cfg,
		Simulator:    client,
		BuildVersion: buildVersion,
		BuildTime:    buildTime,
	})
	if err != nil {
		logger.Error("Invalid page configuration", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Always("Viewer running",
		"addr", cfg.Server.Addr,
		"variant", srv.Variant().Name,
		"simulation", client.URL(),
		"history", cfg.History.Mode,
		"version", buildVersion,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Always("Shutting down viewer")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; end the sessions first.
	srv.Close()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warning("Shutdown incomplete", "error", err)
	}
	logger.Always("Viewer stopped")
}
