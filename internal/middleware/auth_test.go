package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldjob-backend/internal/config"
	"fieldjob-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{SupabaseJWTSecret: testSecret}

	router := gin.New()
	router.Use(middleware.AuthMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(middleware.UserIDKey)})
	})
	return router
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func doAuth(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	w := doAuth(newAuthRouter(t), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	w := doAuth(newAuthRouter(t), "Bearer invalid-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token format")
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	w := doAuth(newAuthRouter(t), "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":  "user-123",
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := doAuth(newAuthRouter(t), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-123")
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte("another-secret"), jwt.MapClaims{"sub": "user-123"})

	w := doAuth(newAuthRouter(t), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "signature is invalid")
}

func TestAuthMiddleware_Expired(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	w := doAuth(newAuthRouter(t), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "anon"})

	w := doAuth(newAuthRouter(t), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing user id")
}

func TestAuthMiddleware_WrongAlgorithm(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": "user-123"})

	w := doAuth(newAuthRouter(t), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
