package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"convoy_tracker/internal/middleware"
)

type AuthController struct {
	jwt          *middleware.JWT
	passwordHash []byte
	tokenTTL     time.Duration
}

func NewAuthController(j *middleware.JWT, passwordHash string, ttl time.Duration) *AuthController {
	return &AuthController{jwt: j, passwordHash: []byte(passwordHash), tokenTTL: ttl}
}

// Login exchanges the admin password for a JWT.
func (ac *AuthController) Login(c *gin.Context) {
	var body struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if len(ac.passwordHash) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login is not configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword(ac.passwordHash, []byte(body.Password)); err != nil {
		logrus.WithField("client_ip", c.ClientIP()).Warn("Failed admin login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := ac.jwt.GenerateToken(middleware.RoleAdmin, middleware.RoleAdmin, ac.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     token,
		"expiresIn": int64(ac.tokenTTL.Seconds()),
	})
}
