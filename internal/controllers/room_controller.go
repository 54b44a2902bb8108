package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"convoy_tracker/internal/export"
	"convoy_tracker/internal/models"
	"convoy_tracker/internal/services"
)

type RoomController struct {
	rooms *services.RoomService
}

func NewRoomController(rooms *services.RoomService) *RoomController {
	return &RoomController{rooms: rooms}
}

// CreateRoom handles POST /api/rooms.
func (rc *RoomController) CreateRoom(c *gin.Context) {
	var profile models.MemberProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, err)
		return
	}
	res, err := rc.rooms.CreateRoom(profile)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"room":    res.Room,
		"userId":  res.UserID,
	})
}

// JoinRoom handles POST /api/rooms/:code/join.
func (rc *RoomController) JoinRoom(c *gin.Context) {
	var profile models.MemberProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, err)
		return
	}
	res, err := rc.rooms.JoinRoom(c.Param("code"), profile)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"room":        res.Room,
		"userId":      res.UserID,
		"reconnected": res.Reconnected,
	})
}

// GetRoom handles GET /api/rooms/:code.
func (rc *RoomController) GetRoom(c *gin.Context) {
	view, err := rc.rooms.GetRoom(c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": view})
}

// LeaveRoom handles POST /api/rooms/:code/leave.
func (rc *RoomController) LeaveRoom(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := rc.rooms.LeaveRoom(c.Param("code"), body.UserID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExportPath handles GET /api/rooms/:code/export?format=json|gpx|csv|geojson.
func (rc *RoomController) ExportPath(c *gin.Context) {
	doc, err := rc.rooms.ExportPath(c.Param("code"), export.ParseFormat(c.Query("format")))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
