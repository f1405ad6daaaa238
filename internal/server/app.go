// Package server wires the gateway together: configuration, storage
// backends, services and the HTTP and gRPC front ends, and runs them until
// the process is told to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/resumegate/internal/cryptox"
	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/server/auth"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/httpapi"
	"github.com/dmitrijs2005/resumegate/internal/server/identity"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
	"github.com/dmitrijs2005/resumegate/internal/server/storage"
	"github.com/dmitrijs2005/resumegate/internal/server/tracing"

	gs "github.com/dmitrijs2005/resumegate/internal/server/grpc"
)

const janitorInterval = time.Minute

type App struct {
	config          *config.Config
	logger          logging.Logger
	repos           repomanager.RepositoryManager
	httpServer      *httpapi.Server
	grpcServer      *gs.GRPCServer
	sweeper         *services.Sweeper
	throttle        *httpapi.Throttle
	shutdownTracing tracing.ShutdownFunc
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	_, shutdownTracing, err := tracing.Init(tracing.Config{ServiceName: "resumegate", Stdout: c.TraceStdout})
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}

	repos, err := repomanager.New(ctx, repomanager.Options{
		Backend:       c.StoreBackend,
		DSN:           c.DatabaseDSN,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newFileStore(ctx, c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("file storage init error: %w", err)
	}

	issuer, err := auth.NewSessionIssuer(c.JWTSecret, c.RoleTokenValidity, c.SessionTokenValidity)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	mx := metrics.New()
	creds := auth.NewCredentialVerifier(c.PasswordHash, c.AdminPasswordHash)
	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleAdmin} {
		if !creds.Configured(role) {
			logger.Warn(ctx, "no password hash configured, role cannot sign in", "role", role)
		}
	}
	gate := services.NewGateService(repos, store, creds, issuer, c, mx, logger)

	var accounts *services.AccountService
	if c.MultiTenant() {
		vault, err := cryptox.NewTokenVault(c.TokenEncryptionKey)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		exchanger := identity.NewGoogleExchanger(c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURI)
		accounts = services.NewAccountService(repos, exchanger, vault, issuer, services.DriveStores(c.DriveBaseURL), c, mx, logger)
	} else {
		logger.Info(ctx, "google sign-in not configured, multi-tenant routes disabled")
	}

	throttle := httpapi.NewThrottle(c.ThrottleRPS, c.ThrottleBurst)

	return &App{
		config:          c,
		logger:          logger,
		repos:           repos,
		httpServer:      httpapi.NewServer(c, logger, gate, accounts, mx, throttle),
		grpcServer:      gs.NewGRPCServer(c.GRPCAddr, logger, gate, issuer, c.SweepGrace),
		sweeper:         services.NewSweeper(gate, c.SweepInterval, c.SweepGrace, logger),
		throttle:        throttle,
		shutdownTracing: shutdownTracing,
	}, nil
}

func newFileStore(ctx context.Context, c *config.Config) (storage.FileStore, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
	case config.StorageLocal:
		return storage.NewLocalStore(c.LocalStorageDir)
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts every component and blocks until ctx is done, a signal
// arrives or one of them fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend, "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.httpServer.Run(gctx) })
	g.Go(func() error { return app.grpcServer.Run(gctx) })
	g.Go(func() error { return app.sweeper.Run(gctx) })
	g.Go(func() error {
		app.throttle.RunJanitor(gctx, janitorInterval)
		return nil
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
	}

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	var errs []error
	if err := app.repos.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := app.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Warn(ctx, "shutdown incomplete", "error", err)
	}
}
