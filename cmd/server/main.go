// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tabline/internal/api"
	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/auth"
	"github.com/tomtom215/tabline/internal/authz"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/config"
	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/logging"
	"github.com/tomtom215/tabline/internal/supervisor"
	"github.com/tomtom215/tabline/internal/supervisor/services"
	"github.com/tomtom215/tabline/internal/tasks"
	ws "github.com/tomtom215/tabline/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Role:    cfg.Server.Role,
		VenueID: cfg.Server.VenueID,
	})

	logging.Info().
		Str("role", cfg.Server.Role).
		Str("venue_id", cfg.Server.VenueID).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("storage", cfg.Storage.Path).
		Msg("Starting Tabline with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === DATA LAYER ===

	storage, err := InitStorage(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storage.Close()

	queue := tasks.New(cfg.Tasks)
	tree.AddDataService(queue)

	auditLog := audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), queue, cfg.Audit)

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		ModelPath:  cfg.Security.Casbin.ModelPath,
		PolicyPath: cfg.Security.Casbin.PolicyPath,
		CacheTTL:   cfg.Security.Casbin.CacheTTL,
	})
	if err != nil {
		storage.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()
	authorizer := authz.NewAuthorizer(enforcer, auditLog)

	orders := ledger.New(storage.Orders, storage.Idem, storage.Catalog, cfg.Ledger,
		ledger.WithAuthorizer(authorizer),
		ledger.WithNotifier(ledger.NewSideEffects(auditLog, queue, ledger.LogTicketSink{})),
	)
	defer orders.Close()

	// Shared by the payment adapter and the outbox engine.
	policy := backoff.New(cfg.Outbox.Backoff)

	payments, err := InitPayments(cfg, orders, storage.DB, auditLog, policy)
	if err != nil {
		storage.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize payments")
	}

	// === MESSAGING LAYER ===

	bus, err := InitEventBus(cfg, tree)
	if err != nil {
		storage.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event bus")
		}
	}()
	orders.AddNotifier(eventbus.NewOrderPublisher(bus))

	registry := fanout.NewRegistry()
	fan, err := fanout.New(registry, cfg.Fanout.DebounceWindow)
	if err != nil {
		storage.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize fan-out")
	}
	defer fan.Close()

	wsHub := ws.NewHub(registry, cfg.Security.CORSOrigins)
	tree.AddMessagingService(wsHub)
	tree.AddMessagingService(fanout.NewBridge(bus, fan))
	logging.Info().Msg("WebSocket hub and fan-out bridge added to supervisor tree")

	// === SYNC LAYER (edge only) ===

	edge := InitEdge(cfg, storage.DB, bus, auditLog, policy, tree)

	// === AUTHENTICATION ===

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == auth.ModeJWT {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			storage.Close()
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
	} else {
		logging.Warn().Msg("Authentication disabled (AUTH_MODE=none); every request runs as admin")
	}
	authMiddleware := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, cfg.Server.VenueID)

	lockout := auth.NewLockoutManager(auth.LockoutConfig{
		MaxAttempts:        cfg.Security.LockoutAttempts,
		LockoutDuration:    cfg.Security.LockoutDuration,
		MaxLockoutDuration: auth.DefaultLockoutConfig().MaxLockoutDuration,
	})
	terminals := auth.NewTerminalRegistry(cfg.Security.Terminals, jwtManager, lockout, auditLog)
	logging.Info().Int("terminals", terminals.Len()).Msg("Terminal registry loaded")

	// === SCHEDULER ===

	backups, err := InitBackup(cfg, storage.DB, auditLog)
	if err != nil {
		storage.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize backups")
	}

	jobs := InitScheduler(cfg, payments, storage.MemoryIdempotency(), auditLog, storage.DB, lockout, backups)
	tree.AddDataService(services.NewSchedulerService("scheduler", jobs))

	// === API LAYER ===

	handler := api.NewHandler(cfg, orders, payments, wsHub)
	if jwtManager != nil {
		handler.SetTerminalRegistry(terminals)
	}
	handler.SetAuditLogger(auditLog)
	if backups != nil {
		handler.SetBackupManager(backups)
	}
	for name, check := range storage.ReadinessChecks() {
		handler.AddReadinessCheck(name, check)
	}
	if edge != nil {
		handler.SetOutboxEngine(edge.Engine)
	} else {
		handler.SetCommandPublisher(bus)
	}

	chiMiddleware := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, authMiddleware, authorizer, chiMiddleware)

	addr := cfg.Server.ListenAddr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Tabline stopped gracefully")
}
