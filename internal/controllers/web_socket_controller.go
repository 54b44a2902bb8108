package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/realtime"
)

type WebSocketController struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketController accepts upgrades from the given origins. A "*"
// entry accepts any origin.
func NewWebSocketController(hub *realtime.Hub, origins []string) *WebSocketController {
	return &WebSocketController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowed[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Connect handles GET /ws. Room binding happens later through join-room.
func (wc *WebSocketController) Connect(c *gin.Context) {
	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).WithField("client_ip", c.ClientIP()).Warn("Failed to upgrade WebSocket connection")
		return
	}
	wc.hub.Attach(conn, c.ClientIP())
}
