package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitepay/railbridge/pkg/config"
)

const (
	testAPIKey    = "test-api-key"
	testJWTSecret = "test-jwt-secret"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Security.APIKey = testAPIKey
	cfg.JWT.Secret = testJWTSecret

	mw := NewMiddleware(cfg, zerolog.Nop())
	router := gin.New()
	router.GET("/guarded", mw.Authenticated(), func(c *gin.Context) {
		subject, _ := c.Get("subject")
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	return router
}

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticated(t *testing.T) {
	router := authRouter()

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		wantCode int
	}{
		{
			name:     "api key header",
			prepare:  func(r *http.Request) { r.Header.Set("X-API-Key", testAPIKey) },
			wantCode: http.StatusOK,
		},
		{
			name:     "api key query parameter",
			prepare:  func(r *http.Request) { r.URL.RawQuery = "api_key=" + testAPIKey },
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong api key",
			prepare:  func(r *http.Request) { r.Header.Set("X-API-Key", "nope") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "bearer jwt",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, testJWTSecret, "ops@example.com"))
			},
			wantCode: http.StatusOK,
		},
		{
			name: "jwt via token query parameter",
			prepare: func(r *http.Request) {
				r.URL.RawQuery = "token=" + signedToken(t, testJWTSecret, "ops@example.com")
			},
			wantCode: http.StatusOK,
		},
		{
			name: "jwt signed with wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, "other-secret", "ops@example.com"))
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "malformed authorization header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwYXNz") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no credentials",
			prepare:  func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			tt.prepare(req)
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAuthenticatedSetsSubject(t *testing.T) {
	router := authRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testJWTSecret, "ops@example.com"))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject":"ops@example.com"}`, rec.Body.String())
}
