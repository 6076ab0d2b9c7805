// Package main is the entry point for the Spacebook session server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spacebook/client/internal/account"
	"github.com/spacebook/client/internal/api"
	"github.com/spacebook/client/internal/api/handlers"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/config"
	"github.com/spacebook/client/internal/logging"
	"github.com/spacebook/client/internal/mockapi"
	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/session"
	"github.com/spacebook/client/internal/storage"
	"github.com/spacebook/client/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	addr := flag.String("addr", ":8099", "HTTP server address")
	dataDir := flag.String("data", "./data", "Data directory for the SQLite credential store")
	staticDir := flag.String("static", "./static", "Directory for static frontend files")
	mock := flag.Bool("mock", false, "Serve an in-memory reservation service and talk to it")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *addr, *dataDir, *staticDir, *mock); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, addr, dataDir, staticDir string, mock bool) error {
	logger.Info("starting Spacebook session server",
		zap.String("version", version),
		zap.String("env", cfg.Env),
		zap.String("credential_backend", cfg.CredentialBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// In mock mode the remote service runs in-process on a loopback port.
	var mockServer *http.Server
	if mock {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listening for mock service: %w", err)
		}
		mockServer = &http.Server{
			Handler: mockapi.New(mockapi.Options{
				Secret:     cfg.MockJWTSecret,
				AccessTTL:  cfg.MockAccessTTL(),
				SeedSpaces: true,
				Logger:     logger,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := mockServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("mock service stopped", zap.Error(err))
			}
		}()
		cfg.APIBaseURL = "http://" + ln.Addr().String() + mockapi.BasePath
		logger.Info("mock reservation service listening", zap.String("base_url", cfg.APIBaseURL))
	}

	creds, err := openCredentialStore(ctx, cfg, dataDir, logger)
	if err != nil {
		return err
	}
	defer creds.close()

	client := apiclient.New(apiclient.Config{
		BaseURL:           cfg.APIBaseURL,
		Timeout:           cfg.HTTPTimeout(),
		RequestsPerSecond: cfg.OutboundRPS,
	}, creds.store, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	registry := booking.NewRegistry(cfg.FormIdleTTL())
	events := websocket.NewEventBroadcaster(hub)
	client.RegisterSessionObserver(func() {
		registry.Clear()
		events.BroadcastSessionExpired(apiclient.MessageSessionExpired)
	})

	watcher := booking.NewWatcher(registry, client, hub, cfg.AvailabilityInterval(), logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting availability watcher: %w", err)
	}

	router := api.NewRouter(api.Services{
		Client:            client,
		Accounts:          account.NewService(client, logger),
		Registry:          registry,
		Hub:               hub,
		CredentialBackend: cfg.CredentialBackend,
		StoreCheck:        creds.check,
		RemoteCheck:       remoteCheck(client),
		History:           creds.history,
		RateLimitPerMin:   cfg.RateLimitPerMin,
		Logger:            logger,
	}, staticDir)

	// Create HTTP server
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			watcher.Stop()
			return fmt.Errorf("serving http: %w", err)
		}
	}

	logger.Info("shutting down server")
	watcher.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	stopHub()
	if mockServer != nil {
		if err := mockServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mock service shutdown", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}

// credentialBackend is the opened credential store and what it offers besides.
type credentialBackend struct {
	store   session.CredentialStore
	check   handlers.Checker
	history handlers.HistorySource
	close   func()
}

func openCredentialStore(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (*credentialBackend, error) {
	switch cfg.CredentialBackend {
	case config.BackendSQLite:
		db, err := storage.NewDB(filepath.Join(dataDir, "spacebook.db"))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := storage.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		repo := storage.NewCredentialRepository(db, cfg.CredentialProfile)
		return &credentialBackend{
			store:   repo,
			check:   db.PingContext,
			history: repo,
			close:   func() { db.Close() },
		}, nil

	case config.BackendRedis:
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return &credentialBackend{
			store: storage.NewRedisCredentialStore(rdb, cfg.CredentialProfile),
			check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close: func() { rdb.Close() },
		}, nil

	default:
		logger.Warn("credentials are kept in memory and lost on restart")
		return &credentialBackend{
			store: session.NewMemoryStore(),
			close: func() {},
		}, nil
	}
}

// remoteCheck reports the service unreachable only for transport failures;
// any answer at all means it is up.
func remoteCheck(client *apiclient.Client) handlers.Checker {
	size := 1
	return func(ctx context.Context) error {
		_, err := client.Spaces(ctx, models.SpaceSearch{Size: &size})
		if errors.Is(err, apiclient.ErrServiceUnreachable) {
			return err
		}
		return nil
	}
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return nil
}
