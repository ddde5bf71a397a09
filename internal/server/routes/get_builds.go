package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/fingraph/internal/timing"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetBuildsHandler lists the most recent build runs.
func GetBuildsHandler(c echo.Context) error {
	type getBuildsData struct {
		Limit int `query:"limit" validate:"min=0,max=200"`
	}

	type getBuildsResponse struct {
		Message string            `json:"message,omitempty"`
		Builds  []timing.BuildRun `json:"builds"`
	}

	data := &getBuildsData{Limit: 20}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, getBuildsResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, getBuildsResponse{
			Message: "Invalid request params",
		})
	}

	history := app(c).History
	if history == nil {
		return c.JSON(http.StatusOK, getBuildsResponse{Builds: []timing.BuildRun{}})
	}

	runs, err := history.ListBuildRuns(c.Request().Context(), data.Limit)
	if err != nil {
		logger.Error("[API] Failed to list build runs", "err", err)
		return c.JSON(http.StatusInternalServerError, getBuildsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getBuildsResponse{Builds: runs})
}
