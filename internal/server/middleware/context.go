package middleware

import (
	"github.com/OFFIS-RIT/fingraph/internal/queue"
	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/cache"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"

	"github.com/labstack/echo/v4"
)

// App holds the shared dependencies of the request handlers. Queue, Lease,
// Cache and History are optional.
type App struct {
	Graph    *graph.GraphClient
	Queue    queue.Publisher
	Lease    leaselock.Locker
	Cache    *cache.NeighborhoodCache
	History  timing.History
	MaxDepth int
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
