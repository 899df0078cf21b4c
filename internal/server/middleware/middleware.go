package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kitepay/railbridge/pkg/config"
)

type Middleware struct {
	config *config.Config
	logger zerolog.Logger
}

func NewMiddleware(cfg *config.Config, logger zerolog.Logger) *Middleware {
	return &Middleware{
		config: cfg,
		logger: logger,
	}
}

func (m *Middleware) SetupMiddleware(router *gin.Engine) {
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status", param.StatusCode).
			Dur("latency", param.Latency).
			Str("client_ip", param.ClientIP).
			Str("user_agent", param.Request.UserAgent()).
			Msg("HTTP Request")
		return ""
	}))

	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	})
}

// Authenticated guards the status and refund APIs. A request passes with
// either the service API key or a bearer JWT signed with the configured
// secret; JWT subjects land in the "subject" context key.
func (m *Middleware) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := apiKeyFrom(c); apiKey != "" {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.config.Security.APIKey)) == 1 {
				c.Next()
				return
			}
			m.logger.Error().Msg("Invalid API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			c.Abort()
			return
		}

		tokenString := bearerTokenFrom(c)
		if tokenString == "" {
			m.logger.Error().Msg("Credentials missing")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "credentials required via X-API-Key header or Authorization bearer token",
			})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(m.config.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			m.logger.Error().Err(err).Msg("Failed to verify token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			c.Abort()
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set("subject", sub)
		}

		c.Next()
	}
}

func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

func bearerTokenFrom(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
