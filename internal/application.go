package application

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

	"github.com/julienschmidt/httprouter"

	"github.com/rocketscienceinc/bingo-backend/internal/config"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
	"github.com/rocketscienceinc/bingo-backend/internal/repository/memory"
	"github.com/rocketscienceinc/bingo-backend/internal/repository/storage"
	"github.com/rocketscienceinc/bingo-backend/internal/telemetry"
	"github.com/rocketscienceinc/bingo-backend/internal/usecase"
	"github.com/rocketscienceinc/bingo-backend/transport/rest"
	"github.com/rocketscienceinc/bingo-backend/transport/websocket"
)

const (
	serviceName     = "bingo-backend"
	shutdownTimeout = 5 * time.Second
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until SIGINT or SIGTERM.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, conf.OTel.Endpoint, conf.OTel.Enabled)
	if err != nil {
		return fmt.Errorf("could not set up tracing: %w", err)
	}

	defer func() {
		if err = shutdownTracing(context.Background()); err != nil {
			log.Error("could not flush traces", "error", err)
		}
	}()

	store, closeStore, err := OpenStore(ctx, logger, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = closeStore(); err != nil {
			log.Error("could not close store", "error", err)
		}
	}()

	sessionManager := usecase.NewSessionManager(logger, store)
	wsServer := websocket.New(logger, store)

	mux := httprouter.New()
	rest.NewHandlers(logger, sessionManager, conf.PublicURL).Register(mux)
	wsServer.Register(mux)

	srv := &http.Server{
		Addr:              ":" + conf.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	srv.RegisterOnShutdown(wsServer.Shutdown)

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort, "store", conf.Store)
		if httpErr := srv.ListenAndServe(); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

// OpenStore connects the configured session store. The returned func releases it.
func OpenStore(ctx context.Context, logger *slog.Logger, conf *config.Config) (repository.Store, func() error, error) {
	if conf.Store == config.StoreMemory {
		logger.Warn("using the in-process store, sessions are lost on restart")
		return memory.New(), func() error { return nil }, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, storage.RedisOptions{
		Addr:     redisAddrString,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return repository.NewRedisStore(logger, redisStorage.Connection, conf.SessionTTL), redisStorage.Close, nil
}

// OpenIdentities opens the SQLite identity file, creating its schema.
func OpenIdentities(ctx context.Context, conf *config.Config) (repository.IdentityRepository, func() error, error) {
	sqliteStorage, err := storage.NewSQLiteStorage(conf.IdentityPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open identity storage: %w", err)
	}

	if err = sqliteStorage.Init(ctx); err != nil {
		_ = sqliteStorage.Close()
		return nil, nil, fmt.Errorf("could not migrate identity storage: %w", err)
	}

	return repository.NewIdentityRepository(sqliteStorage.Connection), sqliteStorage.Close, nil
}
