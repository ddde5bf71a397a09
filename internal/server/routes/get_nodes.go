package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/fingraph/pkg/common"
	"github.com/OFFIS-RIT/fingraph/pkg/graph"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"
	"github.com/OFFIS-RIT/fingraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetNodesHandler lists nodes by descending importance.
func GetNodesHandler(c echo.Context) error {
	type getNodesData struct {
		Kind  string `query:"kind"`
		Limit int    `query:"limit" validate:"min=0,max=1000"`
	}

	type getNodesResponse struct {
		Message string        `json:"message,omitempty"`
		Nodes   []common.Node `json:"nodes"`
	}

	data := &getNodesData{Limit: 100}
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, getNodesResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, getNodesResponse{
			Message: "Invalid request params",
		})
	}

	filter := common.NodeFilter{Limit: data.Limit}
	if data.Kind != "" {
		kind, err := common.ParseNodeKind(data.Kind)
		if err != nil {
			return c.JSON(http.StatusBadRequest, getNodesResponse{
				Message: "Unknown node kind",
			})
		}
		filter.Kind = kind
	}

	nodes, err := app(c).Graph.ListNodes(c.Request().Context(), filter)
	if err != nil {
		logger.Error("[API] Failed to list nodes", "err", err)
		return c.JSON(http.StatusInternalServerError, getNodesResponse{
			Message: "Internal server error",
		})
	}
	if nodes == nil {
		nodes = []common.Node{}
	}

	return c.JSON(http.StatusOK, getNodesResponse{Nodes: nodes})
}

// GetNodeHandler returns a single node.
func GetNodeHandler(c echo.Context) error {
	type getNodeData struct {
		ID int64 `param:"id" validate:"required,min=1"`
	}

	data := new(getNodeData)
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

	node, err := app(c).Graph.GetNode(c.Request().Context(), data.ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, messageResponse{
			Message: "Node not found",
		})
	}
	if err != nil {
		logger.Error("[API] Failed to get node", "node_id", data.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, node)
}

// GetNeighborhoodHandler returns the bounded neighborhood of a node. depth
// defaults to 1 and is capped at the configured maximum.
func GetNeighborhoodHandler(c echo.Context) error {
	type getNeighborhoodData struct {
		ID    int64 `param:"id" validate:"required,min=1"`
		Depth int   `query:"depth"`
	}

	data := &getNeighborhoodData{Depth: 1}
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

	a := app(c)
	depth := data.Depth
	if a.MaxDepth > 0 && depth > a.MaxDepth {
		depth = a.MaxDepth
	}

	load := func(ctx context.Context) (*common.Subgraph, error) {
		return a.Graph.GetNeighborhood(ctx, data.ID, depth)
	}

	ctx := c.Request().Context()
	var (
		sg  *common.Subgraph
		err error
	)
	if a.Cache != nil {
		sg, err = a.Cache.Neighborhood(ctx, data.ID, depth, load)
	} else {
		sg, err = load(ctx)
	}
	if errors.Is(err, graph.ErrNodeNotFound) {
		return c.JSON(http.StatusNotFound, messageResponse{
			Message: "Node not found",
		})
	}
	if err != nil {
		logger.Error("[API] Neighborhood query failed", "node_id", data.ID, "depth", depth, "err", err)
		return c.JSON(http.StatusInternalServerError, messageResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, sg)
}
