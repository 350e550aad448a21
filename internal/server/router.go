// Package server assembles the HTTP surface: middleware, auth routes, health
// and metrics endpoints.
package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AntonTsoy/auth-service/internal/auth"
	"github.com/AntonTsoy/auth-service/internal/logging"
	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 10 << 10

type Deps struct {
	Auth    *auth.AuthHandler
	Log     *slog.Logger
	Debug   bool
	Metrics http.Handler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(d.Log), logging.RequestLogger(d.Log), limitBody(maxBodyBytes), ErrorHandler(d.Log, d.Debug))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Server is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	d.Auth.Register(r.Group("/api/auth"))
	d.Auth.Register(r.Group("/auth"))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Route " + c.Request.URL.Path + " not found",
		})
	})
	return r
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
