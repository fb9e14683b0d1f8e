package routes

import (
	"github.com/gin-gonic/gin"

	"tallyboard/internal/controllers"
)

// DashboardRoutes registers the dashboard queries behind limit. The stream is
// long-lived and stays outside it.
func DashboardRoutes(r *gin.Engine, dc *controllers.DashboardController, limit []gin.HandlerFunc) {
	dashboard := r.Group("/api/dashboard")
	{
		queries := dashboard.Group("", limit...)
		queries.GET("/stats", dc.Stats)
		queries.GET("/table", dc.Table)

		dashboard.GET("/stream", dc.Stream)
	}
}
