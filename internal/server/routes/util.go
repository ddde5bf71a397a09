package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/fingraph/internal/server/middleware"
	"github.com/OFFIS-RIT/fingraph/pkg/leaselock"

	"github.com/labstack/echo/v4"
)

type messageResponse struct {
	Message string `json:"message"`
}

type countResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func app(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}

// withBuildLease runs fn under the build lease without waiting for it. A
// running build makes the request fail fast with leaselock.ErrBusy.
func withBuildLease(c echo.Context, fn func(ctx context.Context) error) error {
	ctx := c.Request().Context()
	lease := app(c).Lease
	if lease == nil {
		return fn(ctx)
	}
	return lease.WithLease(ctx, leaselock.BuildKey, leaselock.Options{}, fn)
}

// mutationError maps errors of the synchronous pipeline stages.
func mutationError(c echo.Context, err error) error {
	if errors.Is(err, leaselock.ErrBusy) {
		return c.JSON(http.StatusConflict, messageResponse{
			Message: "A graph build is running",
		})
	}
	return c.JSON(http.StatusInternalServerError, messageResponse{
		Message: "Internal server error",
	})
}
