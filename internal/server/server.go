// Package server assembles the HTTP surface: the search API, the snapshot
// event stream, health and metrics.
package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/config"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/search"
)

// New builds the fully-routed HTTP handler. CORS wraps the router so the
// browser UI, served from its own origin during development, can reach
// both the JSON API and the event stream.
func New(cfg *config.Config, controller *search.Controller, log *logger.Logger) http.Handler {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	handler := NewHandler(controller, log)

	api := router.Group("/api")
	{
		api.POST("/search", handler.StartSearch)
		api.POST("/search/cancel", handler.CancelSearch)
		api.GET("/search/state", handler.SearchState)
		api.GET("/search/events", handler.SearchEvents)
		api.GET("/health", handler.Health)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
	})

	return corsMiddleware.Handler(router)
}

// requestIDMiddleware stamps every request with an id for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
