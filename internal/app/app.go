// Package app assembles the service from configuration: logger, backend
// client, snapshot store, cache, account service and HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/cache"
	"github.com/zms-erp/ledgertree/client"
	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/handlers"
	"github.com/zms-erp/ledgertree/internal/jobs"
	"github.com/zms-erp/ledgertree/internal/logging"
	"github.com/zms-erp/ledgertree/models"
	"github.com/zms-erp/ledgertree/repository"
	"github.com/zms-erp/ledgertree/service"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of one process
type App struct {
	Config     *config.AppConfig
	Backend    *config.BackendConfig
	Categories []models.CategoryDef
	Logger     *logrus.Logger
	Service    *service.AccountService

	repo repository.Repository
}

// Option configures New
type Option func(*options)

type options struct {
	logOutput io.Writer
}

// WithLogOutput sends log lines to w instead of stdout
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// New builds the application from provider. The caller must Close it.
func New(ctx context.Context, provider config.Provider, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	appCfg, err := config.GetAppConfig(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("app config: %w", err)
	}
	logger := logging.New(appCfg.Environment, appCfg.LogLevel, o.logOutput)

	backendCfg, err := config.GetBackendConfig(ctx, provider)
	if err != nil {
		return nil, err
	}
	categories, err := config.LoadCategories(appCfg.CategoriesFile)
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(appCfg, provider)
	if err != nil {
		return nil, err
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", appCfg.StoreDriver, err)
	}

	if err := cache.Initialize(appCfg.CacheDriver); err != nil {
		_ = repo.Cleanup(ctx)
		return nil, fmt.Errorf("initializing %s cache: %w", appCfg.CacheDriver, err)
	}

	backend := client.New(backendCfg, client.WithLogger(logger))
	svc := service.NewAccountService(backend, repo, categories, service.WithLogger(logger))

	logger.WithFields(logrus.Fields{
		"environment": appCfg.Environment,
		"store":       appCfg.StoreDriver,
		"cache":       appCfg.CacheDriver,
		"backend":     backendCfg.BaseURL,
		"page_policy": backendCfg.PagePolicy,
	}).Info("application configured")

	return &App{
		Config:     appCfg,
		Backend:    backendCfg,
		Categories: categories,
		Logger:     logger,
		Service:    svc,
		repo:       repo,
	}, nil
}

func newRepository(cfg *config.AppConfig, provider config.Provider) (repository.Repository, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return repository.NewSQLiteRepository(cfg.SQLitePath), nil
	case "postgres":
		return repository.NewPostgresRepository(provider)
	default:
		return repository.NewMemoryRepository(), nil
	}
}

// Router returns the gin engine serving the HTTP API
func (a *App) Router() *gin.Engine {
	if a.Config.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestID(), logging.Middleware(a.Logger))
	handlers.NewAccountHandler(a.Service).RegisterRoutes(r)
	return r
}

// Serve listens on the configured address until ctx is cancelled, running
// the refresh scheduler alongside when one is configured.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.RefreshSchedule != "" {
		scheduler, err := jobs.NewRefreshScheduler(a.Config.RefreshSchedule, a.Service, a.Logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases the snapshot store
func (a *App) Close(ctx context.Context) error {
	return a.repo.Cleanup(ctx)
}
