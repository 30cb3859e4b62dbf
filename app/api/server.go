package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Access gate
	r.GET("/gate", handler.GetGate)
	r.POST("/gate", handler.PostGate)

	// Root endpoint: service information once the gate is passed
	r.GET("/", func(c *gin.Context) {
		if !gatePassed(c) {
			c.Redirect(http.StatusFound, "/gate")
			return
		}
		handler.GetInfo(c)
	})

	// Aggregated endpoints
	gated := r.Group("/api")
	gated.Use(gateMiddleware())
	{
		gated.GET("/search", handler.Search)
		gated.GET("/trending", handler.Trending)
		gated.GET("/videos/:id", handler.Video)
		gated.GET("/comments/:id", handler.Comments)
		gated.GET("/channels/:id", handler.Channel)
		gated.GET("/playlists/:id", handler.Playlist)
		gated.GET("/streams/:id", handler.Stream)
	}

	// Public endpoints
	r.GET("/suggest", handler.Suggest)
	r.GET("/api/bbs/posts", handler.BBSPosts)
	r.POST("/api/bbs/post", handler.BBSPost)
	r.GET("/api/thumbnail", handler.Thumbnail)
	r.GET("/health", handler.GetHealth)

	// Admin endpoints (conditionally enabled with authentication)
	if apiAccessKey != "" {
		admin := r.Group("/admin")
		admin.Use(authMiddleware(apiAccessKey))
		{
			admin.GET("/mirrors", handler.APIListMirrors)
			admin.POST("/mirrors/probe", handler.APIProbeMirrors)
		}
		slog.Info("Admin endpoints enabled with authentication")
	} else {
		slog.Info("Admin endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func gatePassed(c *gin.Context) bool {
	value, err := c.Cookie(GateCookie)
	return err == nil && value == gateCookieValue
}

// gateMiddleware requires the cookie set by a successful POST /gate
func gateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !gatePassed(c) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Access code required",
				"message": "Submit the access code to /gate first",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// authMiddleware creates authentication middleware for admin endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get API key from X-API-Key header
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// Check if API key is provided and matches
		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		// Continue to next middleware/handler
		c.Next()
	}
}
