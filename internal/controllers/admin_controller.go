package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"convoy_tracker/internal/models"
	"convoy_tracker/internal/services"
)

type AdminController struct {
	admin       *services.AdminService
	maxGPXBytes int64
}

func NewAdminController(admin *services.AdminService, maxGPXBytes int64) *AdminController {
	return &AdminController{admin: admin, maxGPXBytes: maxGPXBytes}
}

type roomInput struct {
	RoomName *string `json:"roomName"`
	IsPublic *bool   `json:"isPublic"`
}

// PublicRooms handles GET /api/admin/public-rooms. No authentication.
func (ac *AdminController) PublicRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "rooms": ac.admin.PublicRooms()})
}

func (ac *AdminController) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "rooms": ac.admin.ListRooms()})
}

func (ac *AdminController) CreateRoom(c *gin.Context) {
	var in roomInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	name := ""
	if in.RoomName != nil {
		name = *in.RoomName
	}
	view, err := ac.admin.CreateRoom(name, in.IsPublic)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "room": view})
}

func (ac *AdminController) GetRoom(c *gin.Context) {
	view, err := ac.admin.GetRoom(c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": view})
}

func (ac *AdminController) UpdateRoom(c *gin.Context) {
	var in roomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	view, err := ac.admin.UpdateRoom(c.Param("code"), in.RoomName, in.IsPublic)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": view})
}

func (ac *AdminController) DeleteRoom(c *gin.Context) {
	if err := ac.admin.DeleteRoom(c.Param("code")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Room deleted"})
}

func (ac *AdminController) AssignLeader(c *gin.Context) {
	var profile models.MemberProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ac.admin.AssignLeader(c.Param("code"), profile)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "userId": res.UserID, "room": res.Room})
}

func (ac *AdminController) RemoveLeader(c *gin.Context) {
	if err := ac.admin.RemoveLeader(c.Param("code"), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ac *AdminController) RemoveUser(c *gin.Context) {
	if err := ac.admin.RemoveUser(c.Param("code"), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ImportGPX handles the multipart upload of a GPX route (field "file").
func (ac *AdminController) ImportGPX(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ac.maxGPXBytes+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "a GPX file is required in field \"file\""})
		return
	}
	if fh.Size > ac.maxGPXBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("GPX file exceeds %d bytes", ac.maxGPXBytes),
		})
		return
	}
	f, err := fh.Open()
	if err != nil {
		handleServiceError(c, err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, ac.maxGPXBytes+1))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	ps, err := ac.admin.ImportGPX(c.Param("code"), raw)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code": c.Param("code"),
			"file":      fh.Filename,
		}).Warn("GPX import rejected")
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"message":                 fmt.Sprintf("Route imported (%d destinations)", len(ps.DestinationPath)),
		"destinationPath":         ps.DestinationPath,
		"currentDestinationIndex": ps.CurrentDestinationIndex,
	})
}
