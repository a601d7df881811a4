package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/claude/repcounter/internal/config"
	"github.com/claude/repcounter/internal/mcp"
	"github.com/claude/repcounter/internal/mqttbridge"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/server"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit (postgres only)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCounter starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the taught-profile store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open profile store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	registry := profiles.NewRegistry(store, log)
	manager := session.NewManager(registry, cfg.SessionOptions(), log)
	runner := session.NewRunner(manager, 256, log)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("session runner error", "error", err)
		}
	}()

	// Create server
	srv := server.New(runner, registry, cfg.Auth.APIKey, log)
	mcpSrv := mcp.New(mcp.Local{Profiles: registry, Manager: manager}, Version, log)
	srv.Mount("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))

	if cfg.MQTT.Enabled {
		bridge := mqttbridge.New(mqttbridge.Config{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			PoseTopic:  cfg.MQTT.PoseTopic,
			EventTopic: cfg.MQTT.EventTopic,
		}, runner, manager, log)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("mqtt bridge error", "error", err)
			}
		}()
	}

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// openStore returns the configured profile store and its close func. The
// postgres store runs migrations first.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (profiles.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations applied")
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connected")
		return db, db.Close, nil
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", cfg.Storage.Path, err)
		}
		s, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info("sqlite profile store opened", "path", cfg.Storage.Path)
		return s, func() { s.Close() }, nil
	}
}
