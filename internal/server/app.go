// Package server initializes and runs the backend: it opens the database,
// applies migrations, wires the services, and starts the HTTP API with
// graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pocketsync/internal/logging"
	"pocketsync/internal/server/config"
	"pocketsync/internal/server/httpapi"
	"pocketsync/internal/server/repositories/repomanager"
	"pocketsync/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	httpSrv *httpapi.Server
	cleanup func()
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, loggerCleanup, err := logging.NewProductionZapLogger()
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.Database.DSN)
	if err != nil {
		loggerCleanup()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		loggerCleanup()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(db, rm, c)
	ss := services.NewSyncService(db, rm, c)
	as := services.NewAvatarService(c)

	httpSrv := httpapi.NewServer(c.HTTP.Addr, c.HTTP.ShutdownTimeout, logger,
		us, ss, as, []byte(c.JWT.Secret))

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		httpSrv: httpSrv,
		cleanup: loggerCleanup,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	err := app.httpSrv.Run(ctx)

	if closeErr := app.db.Close(); closeErr != nil {
		app.logger.Error(ctx, "error closing database", "error", closeErr)
	}
	app.cleanup()

	return err
}
