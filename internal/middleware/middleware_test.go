package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(j *JWT, calls *int) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), Prometheus())
	r.GET("/secret", j.RequireAuthWithRole(RoleAdmin), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT("test-secret")
	token, err := j.GenerateToken("admin", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestJWT_RejectsForeignAndExpiredTokens(t *testing.T) {
	j := NewJWT("test-secret")

	foreign, err := NewJWT("other-secret").GenerateToken("admin", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = j.ValidateToken(foreign)
	assert.Error(t, err)

	expired, err := j.GenerateToken("admin", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	_, err = j.ValidateToken(expired)
	assert.Error(t, err)
}

func TestRequireAuthWithRole(t *testing.T) {
	j := NewJWT("test-secret")
	calls := 0
	r := protectedRouter(j, &calls)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "garbage").Code)
	assert.Zero(t, calls)

	viewer, err := j.GenerateToken("someone", "viewer", time.Hour)
	require.NoError(t, err)
	w := get(r, viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient permissions"}`, w.Body.String())
	assert.Zero(t, calls, "handler must not run for the wrong role")

	admin, err := j.GenerateToken("admin", RoleAdmin, time.Hour)
	require.NoError(t, err)
	w = get(r, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"admin"}`, w.Body.String())
	assert.Equal(t, 1, calls)
}

func TestRequireAuth_RunsHandlerOnce(t *testing.T) {
	j := NewJWT("test-secret")
	calls := 0
	r := gin.New()
	r.GET("/secret", j.RequireAuth(), func(c *gin.Context) {
		calls++
		c.Status(http.StatusNoContent)
	})

	token, err := j.GenerateToken("someone", "viewer", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, get(r, token).Code)
	assert.Equal(t, 1, calls)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://convoy.example"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://convoy.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://convoy.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"*"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
