package routes

import (
	"github.com/gin-gonic/gin"

	"tallyboard/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine, wc *controllers.WebSocketController) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/tally", wc.HandleTallyWebSocket)
	}
}
