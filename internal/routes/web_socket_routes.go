package routes

import (
	"github.com/gin-gonic/gin"

	"convoy_tracker/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine, wc *controllers.WebSocketController) {
	r.GET("/ws", wc.Connect)
}
