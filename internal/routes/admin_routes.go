package routes

import (
	"github.com/gin-gonic/gin"

	"convoy_tracker/internal/controllers"
	"convoy_tracker/internal/middleware"
)

func AdminRoutes(api *gin.RouterGroup, j *middleware.JWT, ac *controllers.AdminController) {
	api.GET("/admin/public-rooms", ac.PublicRooms)

	admin := api.Group("/admin")
	admin.Use(j.RequireAuthWithRole(middleware.RoleAdmin))
	{
		admin.GET("/rooms", ac.ListRooms)
		admin.POST("/rooms", ac.CreateRoom)
		admin.GET("/rooms/:code", ac.GetRoom)
		admin.PUT("/rooms/:code", ac.UpdateRoom)
		admin.DELETE("/rooms/:code", ac.DeleteRoom)
		admin.POST("/rooms/:code/leaders", ac.AssignLeader)
		admin.DELETE("/rooms/:code/leaders/:userId", ac.RemoveLeader)
		admin.DELETE("/rooms/:code/users/:userId", ac.RemoveUser)
		admin.POST("/rooms/:code/gpx", ac.ImportGPX)
	}
}
