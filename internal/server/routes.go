package server

import (
	"github.com/OFFIS-RIT/fingraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	graphRoutes := e.Group("/api/graph")

	// Pipeline routes
	graphRoutes.POST("/build", routes.PostBuildHandler)
	graphRoutes.POST("/extract/:kind", routes.PostExtractHandler)
	graphRoutes.POST("/edges", routes.PostEdgesHandler)
	graphRoutes.POST("/score", routes.PostScoreHandler)
	graphRoutes.GET("/builds", routes.GetBuildsHandler)

	// Query routes
	graphRoutes.GET("/nodes", routes.GetNodesHandler)
	graphRoutes.GET("/nodes/:id", routes.GetNodeHandler)
	graphRoutes.GET("/nodes/:id/neighborhood", routes.GetNeighborhoodHandler)
}
