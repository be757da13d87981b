// tabledav server
//
// A WebDAV server over a single relational table: every file and
// directory is a row keyed by its path, content included. Any WebDAV
// client can mount it; no mkdir is required before writing deep paths.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/api"
	"github.com/tabledav/tabledav/internal/auth"
	"github.com/tabledav/tabledav/internal/config"
	"github.com/tabledav/tabledav/internal/events"
	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
	"github.com/tabledav/tabledav/internal/vfs"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	logging.Info("tabledav server starting...",
		zap.String("listen", listenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("table", cfg.TableName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the database
	db, dialect, err := vfs.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logging.Fatal("database ping failed", zap.Error(err))
	}
	logging.Info("database connected", zap.String("dialect", dialect.Name))

	// Create the virtual filesystem and bootstrap its table
	store, err := vfs.New(db, dialect, vfs.Options{
		TableName: cfg.TableName,
		ReadChunk: cfg.ReadStreamChunk,
	})
	if err != nil {
		logging.Fatal("filesystem init failed", zap.Error(err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logging.Fatal("schema bootstrap failed", zap.Error(err))
	}

	// Auth gate (disabled unless USERNAME is configured)
	gate := auth.New(auth.Options{
		Username:       cfg.Username,
		Password:       cfg.Password,
		PasswordBcrypt: cfg.PasswordBcrypt,
		JWTSecret:      cfg.JWTSecret,
	})
	if gate.Enabled() {
		logging.Info("basic auth enabled", zap.String("username", cfg.Username))
	}

	// Filesystem change feed (SSE)
	feed := events.NewFeed()

	// Assemble the HTTP surface
	srv := api.NewServer(store, gate, feed, cfg.Browser)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: logging.Middleware(srv.Handler()),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Periodic connection metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.UpdateConnectionMetrics()
			}
		}
	}()

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", listenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", listenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}
