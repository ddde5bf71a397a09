package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/fingraph/internal/config"
	"github.com/OFFIS-RIT/fingraph/internal/queue"
	mid "github.com/OFFIS-RIT/fingraph/internal/server/middleware"
	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving the graph API for app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

func Init(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	src, err := cfg.OpenRecordSource(ctx, conn)
	if err != nil {
		logger.Fatal("Failed to open record source", "err", err)
	}

	nc, err := cfg.OpenCache()
	if err != nil {
		logger.Warn("Neighborhood cache disabled", "err", err)
		nc = nil
	}
	if nc != nil {
		defer nc.Close()
	}

	graphClient, err := cfg.NewGraphClient(conn, src, nc)
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	e := New(&mid.App{
		Graph:    graphClient,
		Queue:    queue.NewBuildPublisher(ch),
		Lease:    leaselock.New(conn),
		Cache:    nc,
		History:  timing.NewBuildHistory(conn),
		MaxDepth: cfg.MaxDepth,
	})

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
