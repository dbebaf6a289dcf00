package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/handle"
	"github.com/yeisme/histvault/pkg/internal/service"
)

const testSecret = "test-secret"

func signToken(t *testing.T, typ, userID, deviceID string, ttl time.Duration) string {
	t.Helper()

	claims := service.TokenClaims{
		DeviceID: deviceID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return raw
}

func newAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(AuthMiddleware(configs.AuthConfig{
		Enabled:   true,
		JWTSecret: testSecret,
		SkipPaths: []string{"/auth", "/api/v1/health"},
	}))

	engine.GET("/vaults", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":   c.GetString(handle.UserIDKey),
			"device": c.GetString(handle.DeviceIDKey),
		})
	})
	engine.POST("/auth/token", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return engine
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	engine := newAuthEngine()
	token := signToken(t, "access", "user-1", "dev-1", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/vaults", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-ID", "dev-1")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	engine := newAuthEngine()

	cases := []struct {
		name   string
		header func(r *http.Request)
	}{
		{"no token", func(r *http.Request) {}},
		{"refresh token as access", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "refresh", "u", "dev-1", time.Minute))
			r.Header.Set("X-Device-ID", "dev-1")
		}},
		{"expired token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "access", "u", "dev-1", -time.Minute))
			r.Header.Set("X-Device-ID", "dev-1")
		}},
		{"device mismatch", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "access", "u", "dev-1", time.Minute))
			r.Header.Set("X-Device-ID", "dev-2")
		}},
		{"missing device header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "access", "u", "dev-1", time.Minute))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/vaults", nil)
			tc.header(req)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	engine := newAuthEngine()

	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("skip path should bypass auth, status = %d", w.Code)
	}
}
