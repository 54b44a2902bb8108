package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"convoy_tracker/internal/config"
	"convoy_tracker/internal/controllers"
	"convoy_tracker/internal/middleware"
	"convoy_tracker/internal/realtime"
	"convoy_tracker/internal/services"
	"convoy_tracker/internal/store"
)

// Deps are the components the router exposes over HTTP.
type Deps struct {
	Config *config.Config
	Store  *store.RoomStore
	Hub    *realtime.Hub
	Rooms  *services.RoomService
	Admin  *services.AdminService
	JWT    *middleware.JWT
}

func SetupRouter(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Prometheus())
	r.Use(middleware.CORS(d.Config.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       d.Store.Count(),
			"connections": d.Hub.ConnectionCount(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	RoomRoutes(api, controllers.NewRoomController(d.Rooms))
	AuthRoutes(api, controllers.NewAuthController(d.JWT, d.Config.AdminPasswordHash, d.Config.AdminTokenTTL))
	AdminRoutes(api, d.JWT, controllers.NewAdminController(d.Admin, d.Config.MaxGPXBytes))
	WebSocketRoutes(r, controllers.NewWebSocketController(d.Hub, d.Config.CORSOrigins))

	return r
}
