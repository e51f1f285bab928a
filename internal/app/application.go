package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"chatrelay/internal/api"
	"chatrelay/internal/auth"
	"chatrelay/internal/blob"
	"chatrelay/internal/config"
	"chatrelay/internal/database"
	"chatrelay/internal/heartbeat"
	"chatrelay/internal/presence"
	"chatrelay/internal/relay"
	"chatrelay/internal/user"
	"chatrelay/internal/websocket"
	dbconfig "chatrelay/pkg/database"
	"chatrelay/pkg/interfaces"
)

// Application wires all components in dependency order:
// database -> blob/auth/user -> registry -> presence -> heartbeat -> relay
// -> websocket handler -> API -> HTTP.
type Application struct {
	cfg        *config.Config
	log        *slog.Logger
	dbManager  *database.Manager
	registry   *websocket.Registry
	supervisor *heartbeat.Supervisor
	httpServer *http.Server
}

func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.Path = cfg.DatabasePath
	dbManager, err := database.NewManager(dbCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	blobs, err := blob.NewStore(cfg.BlobDir, log)
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	tokens := auth.NewTokenService(cfg.TokenSecret, cfg.AuthTokenDuration)
	users := user.NewManager(dbManager)

	registry := websocket.NewRegistry()
	broadcaster := presence.NewBroadcaster(registry, log)

	// A reaped connection follows the same removal path as a graceful
	// close: force-close, registry removal, one presence publish.
	supervisor := heartbeat.NewSupervisor(cfg.HeartbeatInterval, cfg.HeartbeatTimeout,
		func(conn interfaces.Conn) {
			_ = conn.Close()
			if registry.Remove(conn) {
				broadcaster.Publish()
			}
		}, log)

	msgRelay := relay.NewRelay(registry, dbManager, blobs, log)
	wsHandler := websocket.NewHandler(registry, tokens, supervisor, msgRelay, broadcaster, cfg.WriteBuffer, log)
	apiServer := api.NewServer(users, dbManager, tokens, dbManager, registry, cfg.AuthTokenDuration, log)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		dbManager:  dbManager,
		registry:   registry,
		supervisor: supervisor,
		httpServer: httpServer,
	}, nil
}

// Start brings the HTTP server up and verifies it came up.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("starting chatrelay", "addr", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		app.log.Info("chatrelay started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: HTTP first so no
// new connections arrive, then live connections, then the database.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down chatrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.log.Warn("HTTP server shutdown error", "err", err)
	}

	for _, conn := range app.registry.Snapshot() {
		app.supervisor.Forget(conn.ID())
		app.registry.Remove(conn)
		_ = conn.Close()
	}

	if err := app.dbManager.Close(); err != nil {
		app.log.Warn("database shutdown error", "err", err)
	}

	app.log.Info("chatrelay shutdown complete")
	return nil
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

// Logger exposes the application logger to the entrypoint.
func (app *Application) Logger() *slog.Logger {
	return app.log
}
