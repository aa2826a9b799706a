// Package main our entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/cove/internal/avatar"
	"github.com/johndosdos/cove/internal/backend"
	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/database"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/handler"
	"github.com/johndosdos/cove/internal/objectstore"
	ratelimiter "github.com/johndosdos/cove/internal/rate_limiter"
	ws "github.com/johndosdos/cove/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// run wires every component and serves until SIGINT/SIGTERM. Returning
// instead of exiting lets the deferred cleanups run.
func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting application...")

	// Init DB
	logger.Info("Initializing Database connection...")
	dbConn, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("could not connect to the postgresql database: %w", err)
	}
	defer dbConn.Close()

	if err := database.Migrate(ctx, stdlib.OpenDBFromPool(dbConn)); err != nil {
		return err
	}
	dbQueries := database.New(dbConn)

	// Init NATS
	logger.Info("Initializing NATS connection...")
	natsOpts := []nats.Option{nats.Name("cove"), nats.Timeout(5 * time.Second)}
	if cfg.NATSCred != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(cfg.NATSCred))
	} else if cfg.NATSUser != "" && cfg.NATSPassword != "" {
		natsOpts = append(natsOpts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}

	conn, err := nats.Connect(cfg.NATSURL, natsOpts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer func() {
		if err := conn.Drain(); err != nil {
			logger.Warn("couldn't drain NATS conn", "error", err)
		}
	}()

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("failed to create jetstream instance: %w", err)
	}
	if _, err := broker.EnsureStream(ctx, js); err != nil {
		return err
	}

	// Init object storage
	var objects avatar.ObjectStore
	switch cfg.ObjectStore {
	case "badger":
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("failed to open badger at [%s]: %w", cfg.BadgerFilepath, err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		objects = objectstore.NewBadgerStore(db, cfg.PublicBaseURL)
	default:
		objects, err = objectstore.NewNATSStore(ctx, js, cfg.ObjectBucket, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
	}

	store := backend.New(logger, dbQueries, dbQueries, broker.New(js))

	// hub.Run tracks every open thread socket until shutdown.
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	limiter := ratelimiter.NewSenderLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer limiter.Cancel()

	router := handler.NewRouter(handler.Deps{
		Log:         logger,
		Messages:    store,
		Profiles:    store,
		Pictures:    store,
		Objects:     objects,
		Hub:         hub,
		Limiter:     limiter,
		TokenSecret: cfg.JWTSecret,
		Ws: handler.WsOpts{
			Thread:        feed.ThreadOptions{SendTimeout: cfg.SendTimeout},
			MessageLimit:  cfg.RateLimitRequests,
			MessageWindow: cfg.RateLimitWindow,
		},
		Avatar: avatar.Options{MaxBytes: cfg.MaxPictureBytes},
	})

	// No write timeout: thread sockets and the conversation stream stay
	// open for as long as the client is connected.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	logger.Info("Server stopped")
	return nil
}
