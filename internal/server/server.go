package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/playsquad/realtime/internal/broadcast"
	"github.com/playsquad/realtime/internal/heartbeat"
	"github.com/playsquad/realtime/internal/relay"
	"github.com/playsquad/realtime/internal/router"
	"github.com/playsquad/realtime/internal/server/middleware"
	"github.com/playsquad/realtime/internal/store"
	"github.com/playsquad/realtime/pkg/config"
	"github.com/playsquad/realtime/pkg/presence"
	"github.com/playsquad/realtime/pkg/state"
	"github.com/playsquad/realtime/pkg/state/registry"
	"github.com/playsquad/realtime/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    state.Registry
	broadcaster *broadcast.Broadcaster
	eventRouter *router.EventRouter
	relays      *relay.Provider
	store       store.PresenceStore
	heartbeat   *heartbeat.Runner
	bridge      *relay.Bridge
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, relays *relay.Provider) *App {
	reg := registry.NewInMemoryRegistry(logger)
	broadcaster := broadcast.New(logger, reg)
	eventRouter := router.NewEventRouter(logger, reg, broadcaster)

	var presenceStore store.PresenceStore = store.Noop{}
	if cfg.Redis.Enabled {
		presenceStore = store.NewRedis(logger, store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	}

	app := &App{
		logger:      logger,
		registry:    reg,
		broadcaster: broadcaster,
		eventRouter: eventRouter,
		relays:      relays,
		store:       presenceStore,
		heartbeat:   heartbeat.NewRunner(logger, reg, presenceStore, cfg.Presence.HeartbeatInterval),
		config:      cfg,
		ctx:         rootCtx,
	}

	// The in-memory update already happened inside the registry; this hook
	// only mirrors it out, so it runs detached and best-effort.
	reg.SetMutationListener(broadcaster.SyncPresence)
	reg.SetStatusListener(app.persistStatus)

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	// Create a cycler function that closes over the registry and logger.
	connCycler := func(userID string) {
		oldest, found := reg.OldestConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", "userID", userID, "connID", oldest.ID)
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, app.config.Server.Auth.JWTSecret),
			middleware.NewConnectionLimiter(
				logger,
				reg.ConnectionCount,
				connCycler,
				app.config.Server.ConnectionLimit,
			),
		),
	)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	// From here on, REST-side callers holding the provider reach live rooms.
	a.relays.SetLive(relay.NewLive(a.broadcaster))

	if a.config.Nats.Enabled {
		bridge, err := relay.NewBridge(a.logger, a.config.Nats.URL, a.relays)
		if err != nil {
			// the bridge is an optional inbound path; the core runs without it
			a.logger.Error("Relay bridge unavailable, continuing without it", slog.Any("error", err))
		} else {
			a.bridge = bridge
		}
	}

	go a.heartbeat.Run(a.ctx)

	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	userID := reqMeta.UserID
	onClose := func(id uuid.UUID, err error) {
		// Registry cleanup is synchronous: the connection leaves every room
		// and the user entry in this handler, never deferred, so a reconnect
		// burst cannot observe ghost membership.
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.registry.Unregister(id)
		if userID != "" && !a.registry.HasAny(userID) {
			go a.persistOffline(userID)
		}
	}

	// Handlers are wired at construction, before Register publishes the
	// connection: once another goroutine (connection cycler, shutdown) can
	// reach it, any Close already deregisters.
	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{ReadTimeout: a.config.Transport.ReadTimeout},
		a.eventRouter.HandleMessage,
		onClose,
		a.logger,
	)

	if _, err := a.registry.Register(conn, userID); err != nil {
		connLogger.Error("Failed to register connection", slog.Any("error", err))
		conn.Close(err)
		return
	}

	a.sendClientConfig(conn)

	// Seed the session's initial status from the backing store and mark the
	// user online, both best-effort and off the connect path.
	go a.seedStatus(userID)
	go a.persistOnline(userID)

	connLogger.Info("User connection fully established", slog.Any("userID", userID))
	conn.Run()
	<-conn.Done()
}

// sendClientConfig hands the freshly connected client the coordination
// timeouts its idle detector and typing tracker should run with, so the
// thresholds are operated server-side instead of hardcoded per client.
func (a *App) sendClientConfig(conn *transport.Connection) {
	payload, err := json.Marshal(map[string]int64{
		"idleTimeoutMs":       a.config.Presence.IdleTimeout.Milliseconds(),
		"hiddenIdleTimeoutMs": a.config.Presence.HiddenIdleTimeout.Milliseconds(),
		"typingClearMs":       a.config.Presence.TypingClearTimeout.Milliseconds(),
	})
	if err != nil {
		return
	}
	msg, err := json.Marshal(broadcast.Message{Event: broadcast.EventPresenceConfig, Payload: payload})
	if err != nil {
		return
	}
	conn.Send(msg)
}

func (a *App) seedStatus(userID string) {
	ctx, cancel := context.WithTimeout(a.ctx, 3*time.Second)
	defer cancel()

	rec, ok, err := a.store.LoadStatus(ctx, userID)
	if err != nil {
		a.logger.Warn("Failed to load persisted status", slog.String("userID", userID), slog.Any("error", err))
		return
	}
	if ok {
		a.registry.SeedStatus(userID, rec)
	}
}

func (a *App) persistStatus(userID string, rec presence.StatusRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.SaveStatus(ctx, userID, rec); err != nil {
			a.logger.Warn("Failed to persist status", slog.String("userID", userID), slog.Any("error", err))
		}
	}()
}

func (a *App) persistOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.MarkOnline(ctx, userID); err != nil {
		a.logger.Warn("Failed to persist online flag", slog.String("userID", userID), slog.Any("error", err))
	}
}

func (a *App) persistOffline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.MarkOffline(ctx, userID, time.Now()); err != nil {
		a.logger.Warn("Failed to persist offline flag", slog.String("userID", userID), slog.Any("error", err))
	}
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.bridge != nil {
		a.bridge.Close()
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.AllConnections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
