package routes

import (
	"context"
	"net/http"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostExtractHandler runs one extractor synchronously.
func PostExtractHandler(c echo.Context) error {
	type postExtractData struct {
		Kind string `param:"kind" validate:"required"`
	}

	data := new(postExtractData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{
			Message: "Invalid request params",
		})
	}
	kind, err := common.ParseNodeKind(data.Kind)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{
			Message: "Unknown node kind",
		})
	}

	var count int
	err = withBuildLease(c, func(ctx context.Context) error {
		var err error
		count, err = app(c).Graph.ExtractNodes(ctx, kind)
		return err
	})
	if err != nil {
		logger.Error("[API] Extraction failed", "kind", kind, "err", err)
		return mutationError(c, err)
	}

	return c.JSON(http.StatusOK, countResponse{
		Message: "Nodes extracted",
		Count:   count,
	})
}

// PostEdgesHandler runs the four edge builders.
func PostEdgesHandler(c echo.Context) error {
	var count int
	err := withBuildLease(c, func(ctx context.Context) error {
		var err error
		count, err = app(c).Graph.BuildEdges(ctx)
		return err
	})
	if err != nil {
		logger.Error("[API] Edge construction failed", "err", err)
		return mutationError(c, err)
	}

	return c.JSON(http.StatusOK, countResponse{
		Message: "Edges built",
		Count:   count,
	})
}

// PostScoreHandler recomputes importance scores.
func PostScoreHandler(c echo.Context) error {
	err := withBuildLease(c, func(ctx context.Context) error {
		return app(c).Graph.ScoreAllNodes(ctx)
	})
	if err != nil {
		logger.Error("[API] Scoring failed", "err", err)
		return mutationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
