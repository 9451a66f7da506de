// Package server wires configuration, storage, the auth service and its
// gRPC, metrics and readiness components, and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/cryptox"
	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"github.com/dmitrijs2005/pwkeeper/internal/server/auth"
	"github.com/dmitrijs2005/pwkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/pwkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/pwkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/pwkeeper/internal/server/readiness"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pwkeeper/internal/server/services"
	"google.golang.org/grpc/health"
)

const readinessInterval = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	metrics     *metrics.Metrics
	health      *health.Server
	checker     *readiness.Checker
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	refreshHasher, err := cryptox.NewRefreshTokenHasher(c.RefreshHashKey())
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.JWTAlgorithm)
	if err != nil {
		return nil, err
	}

	svc, err := services.NewAuthService(
		dbx.NewSQLTransactor(db, nil),
		rm,
		cryptox.NewPasswordHasher(c.Argon2Params()),
		refreshHasher,
		issuer,
		services.TokenLifetimes{
			Access:  c.AccessTokenValidityDuration,
			Refresh: c.RefreshTokenValidityDuration,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	probes := []readiness.Probe{readiness.NewDBProbe(db)}
	s3probe, err := readiness.NewS3Probe(ctx, readiness.S3Settings{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	switch {
	case err == nil:
		probes = append(probes, s3probe)
	case errors.Is(err, readiness.ErrNoBucket):
		logger.Info(ctx, "object storage probe disabled")
	default:
		return nil, err
	}

	hs := health.NewServer()

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		authService: svc,
		metrics:     metrics.New(),
		health:      hs,
		checker:     readiness.NewChecker(hs, readinessInterval, logger, []string{pb.AuthService_ServiceDesc.ServiceName}, probes...),
	}, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.health,
		app.metrics.UnaryServerInterceptor())

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.metrics.Serve(ctx, app.config.EndpointAddrMetrics, app.logger); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.checker.Run(ctx)
	}()

	<-ctx.Done()
	app.waitForShutdown(&wg)

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}

// waitForShutdown gives the components ShutdownTimeout to drain.
func (app *App) waitForShutdown(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(app.config.ShutdownTimeout):
		app.logger.Warn(context.Background(), "shutdown timed out", "timeout", app.config.ShutdownTimeout)
	}
}
