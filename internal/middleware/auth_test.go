package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytesize-travel/service-curation/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jm *auth.JWTManager) *gin.Engine {
	r := gin.New()
	r.GET("/editor", AuthMiddleware(jm), RequireRole(auth.RoleEditor, auth.RoleAdmin), func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/admin", AuthMiddleware(jm), RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jm := auth.NewJWTManager("secret", time.Hour)
	r := newRouter(jm)

	editor, err := jm.GenerateToken("ed", auth.RoleEditor)
	require.NoError(t, err)

	w := doGet(r, "/editor", editor)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ed", w.Body.String())

	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", editor).Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/editor", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/editor", "garbage").Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	r := newRouter(auth.NewJWTManager("secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/editor", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header format")
}

func TestAuthorize_Inline(t *testing.T) {
	jm := auth.NewJWTManager("secret", time.Hour)
	r := gin.New()
	r.GET("/maybe", func(c *gin.Context) {
		if c.Query("write") == "" {
			c.String(http.StatusOK, "read")
			return
		}
		if !Authorize(c, jm, auth.RoleEditor) {
			return
		}
		c.String(http.StatusOK, "write")
	})

	assert.Equal(t, "read", doGet(r, "/maybe", "").Body.String())
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/maybe?write=1", "").Code)

	token, err := jm.GenerateToken("ed", auth.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, "write", doGet(r, "/maybe?write=1", token).Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := doGet(r, "/", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
