package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/fingraph/internal/queue"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostBuildHandler queues a full graph build.
func PostBuildHandler(c echo.Context) error {
	type postBuildResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	publisher := app(c).Queue
	if publisher == nil {
		return c.JSON(http.StatusServiceUnavailable, postBuildResponse{
			Message: "Build queue unavailable",
		})
	}

	id, err := publisher.PublishBuildRequest(c.Request().Context(), queue.BuildRequestMsg{Operation: queue.OpBuild})
	if err != nil {
		logger.Error("[API] Failed to queue build", "err", err)
		return c.JSON(http.StatusInternalServerError, postBuildResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, postBuildResponse{
		Message:       "Build queued",
		CorrelationID: id,
	})
}
