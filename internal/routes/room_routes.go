package routes

import (
	"github.com/gin-gonic/gin"

	"convoy_tracker/internal/controllers"
)

func RoomRoutes(api *gin.RouterGroup, rc *controllers.RoomController) {
	rooms := api.Group("/rooms")
	{
		rooms.POST("", rc.CreateRoom)
		rooms.GET("/:code", rc.GetRoom)
		rooms.POST("/:code/join", rc.JoinRoom)
		rooms.POST("/:code/leave", rc.LeaveRoom)
		rooms.GET("/:code/export", rc.ExportPath)
	}
}
