// Package server exposes the move dispatcher over HTTP and websockets.
package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"gymchess/bots"
	"gymchess/dispatch"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	dispatcher *dispatch.Dispatcher
	policy     *bots.Policy
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	ids        atomic.Uint64
}

func NewHandler(d *dispatch.Dispatcher, policy *bots.Policy, logger zerolog.Logger) *Handler {
	return &Handler{
		dispatcher: d,
		policy:     policy,
		log:        logger,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// NewRouter builds the gin engine serving the bot API.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", Health)
	api := router.Group("/api")
	api.GET("/difficulties", h.Difficulties)
	api.POST("/bestmove", h.BestMove)
	router.GET("/ws", h.ServeWS)
	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
