package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})
	return r
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d", i)
	}
	assert.False(t, rl.Allow("client-a"))
	assert.True(t, rl.Allow("client-b"), "keys are limited independently")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(NewRateLimiter(1, time.Hour)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newAuthRouter(JWTAuthMiddleware(testJWTSecret))
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
		"uid": "user_1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token " + valid, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
		{"wrong key", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("another-secret-key-of-enough-length!"), jwt.MapClaims{
			"uid": "user_1", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testJWTSecret), jwt.MapClaims{
			"uid": "user_1", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
			"uid": "user_1", "exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"no uid", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":"user_1"`)
			}
		})
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	r := newAuthRouter(InternalAuthMiddleware(testInternalSecret))

	for secret, want := range map[string]int{
		"":                 http.StatusUnauthorized,
		"wrong":            http.StatusUnauthorized,
		testInternalSecret: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if secret != "" {
			req.Header.Set("X-Internal-Secret", secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "secret %q", secret)
	}
}

func TestMaskValue(t *testing.T) {
	value := map[string]interface{}{
		"id":    "order_1",
		"iccid": "89011111222233334444",
		"nested": []interface{}{
			map[string]interface{}{"apiToken": "abc", "name": "ok"},
		},
	}

	masked := maskValue(value).(map[string]interface{})
	assert.Equal(t, "order_1", masked["id"])
	assert.Equal(t, "***", masked["iccid"])

	inner := masked["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "***", inner["apiToken"])
	assert.Equal(t, "ok", inner["name"])
}
