package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch_backend/config"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
}

func performRequest(handler gin.HandlerFunc, token string) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	if token != "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	handler(c)
	return w, c
}

func TestUserTokenGrantsAlertAccess(t *testing.T) {
	token, err := GenerateToken("42", "user@example.com", "user")
	require.NoError(t, err)

	w, c := performRequest(JWTAuthMiddleware(), token)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)

	// Alert endpoints scope queries by the numeric user id in the subject
	subject := c.GetString("user_id")
	id, err := strconv.ParseUint(subject, 10, 32)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "user@example.com", c.GetString("user_email"))
	assert.Equal(t, "user", c.GetString("user_role"))
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	w, c := performRequest(JWTAuthMiddleware(), "")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthMiddleware_InvalidToken(t *testing.T) {
	w, c := performRequest(JWTAuthMiddleware(), "not-a-token")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthMiddleware_RejectsUserRole(t *testing.T) {
	token, err := GenerateToken("42", "user@example.com", "user")
	require.NoError(t, err)

	w, c := performRequest(AdminAuthMiddleware(), token)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAuthMiddleware_AllowsAdminRole(t *testing.T) {
	token, err := GenerateToken("1", "admin@example.com", "admin")
	require.NoError(t, err)

	w, c := performRequest(AdminAuthMiddleware(), token)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)
}
