package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/shortlinks/internal/cache"
	"github.com/fsdevblog/shortlinks/internal/codegen"
	"github.com/fsdevblog/shortlinks/internal/config"
	"github.com/fsdevblog/shortlinks/internal/controllers"
	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/fsdevblog/shortlinks/internal/logs"
	"github.com/fsdevblog/shortlinks/internal/services"
	"github.com/fsdevblog/shortlinks/internal/tlscert"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Таймауты http сервера.
const (
	readTimeout       = 5 * time.Second
	readHeaderTimeout = 2 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
	initTimeout       = 10 * time.Second
)

type App struct {
	config   config.Config
	services *services.Services
	closers  []io.Closer
	Logger   *zap.Logger
}

func New(conf config.Config) (*App, error) {
	logger, logErr := logs.New(logs.WithLevel(conf.LogLevel))
	if logErr != nil {
		return nil, fmt.Errorf("init logger: %w", logErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	a := &App{
		config: conf,
		Logger: logger,
	}
	if err := a.initServices(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("init services: %w", err)
	}
	return a, nil
}

// Must вызывает панику если произошла ошибка.
func Must(a *App, err error) *App {
	if err != nil {
		panic(err)
	}
	return a
}

// Run запускает web сервер и фоновую очистку истекших ссылок.
// Возвращает управление после SIGINT/SIGTERM или ошибки сервера.
func (a *App) Run() error {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := controllers.SetupRouter(controllers.RouterParams{
		Registry:    a.services.Registry,
		PingService: a.services.PingService,
		BaseURL:     a.config.BaseURL,
		Logger:      a.Logger,
	})
	server := &http.Server{
		Addr:              a.config.ServerAddress,
		Handler:           router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	sweeper := NewSweeper(a.services.Registry, a.config.PurgeInterval, a.Logger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := a.serve(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown command received")
	case serverErr = <-errChan:
		a.Logger.Error("server error", zap.Error(serverErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown error", zap.Error(err))
	}
	<-sweepDone

	return serverErr
}

// serve запускает сервер по HTTP или, если включено, по HTTPS.
func (a *App) serve(server *http.Server) error {
	if !a.config.EnableHTTPS {
		a.Logger.Info("starting server", zap.String("address", a.config.ServerAddress))
		return server.ListenAndServe() //nolint:wrapcheck
	}

	opts := []func(*tlscert.Options){tlscert.WithFiles(a.config.TLSCertFile, a.config.TLSKeyFile)}
	if a.config.BaseURL != nil {
		opts = append(opts, tlscert.WithHosts(a.config.BaseURL.Hostname()))
	}
	pair, generated, err := tlscert.Ensure(opts...)
	if err != nil {
		return fmt.Errorf("prepare tls certificate: %w", err)
	}
	if generated {
		a.Logger.Warn("self-signed certificate generated", zap.String("cert", pair.CertFile))
	}

	a.Logger.Info("starting https server", zap.String("address", a.config.ServerAddress))
	return server.ListenAndServeTLS(pair.CertFile, pair.KeyFile) //nolint:wrapcheck
}

// initServices создает подключение к хранилищу, кэш и сервисный слой приложения.
func (a *App) initServices(ctx context.Context) error {
	conn, connErr := db.NewConnectionFactory(ctx, db.FactoryConfig{
		StorageType:  a.config.StorageType(),
		PostgresDSN:  &a.config.DatabaseDSN,
		SqliteDBPath: &a.config.SQLitePath,
	})
	if connErr != nil {
		return connErr //nolint:wrapcheck
	}
	a.closers = append(a.closers, connCloser(conn))
	a.Logger.Info("storage connected", zap.String("type", string(a.config.StorageType())))

	gen, genErr := codegen.New(
		codegen.WithLength(a.config.CodeLength),
		codegen.WithAlphabet(a.config.CodeAlphabet),
	)
	if genErr != nil {
		return fmt.Errorf("init code generator: %w", genErr)
	}

	opts := []func(*services.RegistryOptions){
		services.WithDefaultTTL(a.config.DefaultTTL),
		services.WithMaxAttempts(a.config.MaxCreateAttempts),
		services.WithExpiredRetention(a.config.ExpiredRetention),
	}
	if a.config.RedisURL != "" {
		client, redisErr := db.NewRedisClient(ctx, a.config.RedisURL)
		if redisErr != nil {
			return redisErr //nolint:wrapcheck
		}
		a.closers = append(a.closers, client)
		opts = append(opts, services.WithCache(cache.NewLinkCache(client, cache.WithTTL(a.config.CacheTTL))))
		a.Logger.Info("redis cache enabled")
	}

	svc, svcErr := services.Factory(conn, gen, a.Logger, opts...)
	if svcErr != nil {
		return svcErr //nolint:wrapcheck
	}
	a.services = svc
	return nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Error("close resource", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// connCloser закрывает подключение, созданное db.NewConnectionFactory.
func connCloser(conn any) io.Closer {
	switch c := conn.(type) {
	case *pgxpool.Pool:
		return closerFunc(func() error {
			c.Close()
			return nil
		})
	case *gorm.DB:
		return closerFunc(func() error {
			sqlDB, err := c.DB()
			if err != nil {
				return fmt.Errorf("get sql db: %w", err)
			}
			return sqlDB.Close() //nolint:wrapcheck
		})
	default:
		return closerFunc(func() error { return nil })
	}
}
