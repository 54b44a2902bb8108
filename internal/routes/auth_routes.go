package routes

import (
	"github.com/gin-gonic/gin"

	"convoy_tracker/internal/controllers"
)

func AuthRoutes(api *gin.RouterGroup, ac *controllers.AuthController) {
	api.POST("/admin/login", ac.Login)
}
