package routes

import (
	"github.com/gin-gonic/gin"

	"tallyboard/internal/controllers"
)

func VoteRoutes(r *gin.Engine, vc *controllers.VotesController, limit []gin.HandlerFunc) {
	votes := r.Group("/api/votes", limit...)
	{
		votes.POST("", vc.Create)
	}
}
