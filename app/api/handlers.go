package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/tube-comb/app/cfg"
	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/lysyi3m/tube-comb/app/proxy"
	"github.com/lysyi3m/tube-comb/app/tasks"
)

const maxPostBytes = 64 << 10

func NewHandler(service AggregatorInterface, streams StreamResolverInterface, bbs BBSInterface,
	thumbnails ThumbnailInterface, statsRepo database.StatsRepositoryInterface,
	registry *mirror.Registry, scheduler tasks.TaskSchedulerInterface, accessCode string) *Handler {
	return &Handler{
		service:    service,
		streams:    streams,
		bbs:        bbs,
		thumbnails: thumbnails,
		statsRepo:  statsRepo,
		registry:   registry,
		scheduler:  scheduler,
		accessCode: accessCode,
	}
}

func (h *Handler) GetGate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "アクセスコードを入力してください",
		"field":   "access_code",
	})
}

func (h *Handler) PostGate(c *gin.Context) {
	code := c.PostForm("access_code")
	if subtle.ConstantTimeCompare([]byte(code), []byte(h.accessCode)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid access code",
			"message": "アクセスコードが違います",
		})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(GateCookie, gateCookieValue, gateCookieTTL, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing q parameter"})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page parameter"})
			return
		}
		page = parsed
	}

	results, err := h.service.Search(c.Request.Context(), query, page)
	if err != nil {
		respondDegraded(c, "search", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"query":   query,
		"page":    page,
		"next":    page + 1,
	})
}

func (h *Handler) Trending(c *gin.Context) {
	results, err := h.service.Trending(c.Request.Context(), strings.ToUpper(c.Query("region")))
	if err != nil {
		respondDegraded(c, "trending", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) Video(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.service.Video(c.Request.Context(), id)
	if err != nil {
		respondError(c, "video", id, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Comments(c *gin.Context) {
	id := c.Param("id")

	page, err := h.service.Comments(c.Request.Context(), id, c.Query("continuation"))
	if err != nil {
		respondError(c, "comments", id, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) Channel(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.service.Channel(c.Request.Context(), id)
	if err != nil {
		respondError(c, "channel", id, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Playlist(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.service.Playlist(c.Request.Context(), id)
	if err != nil {
		respondError(c, "playlist", id, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Stream(c *gin.Context) {
	id := c.Param("id")

	switch quality := c.DefaultQuery("quality", "360p"); quality {
	case "360p":
		link, err := h.streams.Resolve360p(c.Request.Context(), id)
		if err != nil {
			respondError(c, "stream_360p", id, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": link, "quality": quality})

	case "high":
		stream, err := h.streams.ResolveHighestQuality(c.Request.Context(), id)
		if err != nil {
			respondError(c, "stream_high", id, err)
			return
		}
		c.JSON(http.StatusOK, stream)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quality parameter", "allowed": []string{"360p", "high"}})
	}
}

func (h *Handler) Suggest(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Suggestions(c.Request.Context(), strings.TrimSpace(c.Query("keyword"))))
}

func (h *Handler) BBSPosts(c *gin.Context) {
	posts, err := h.bbs.Posts(c.Request.Context())
	if err != nil {
		respondError(c, "bbs_posts", "", err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", posts)
}

func (h *Handler) BBSPost(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPostBytes+1))
	if err != nil || len(body) > maxPostBytes || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a JSON document"})
		return
	}

	clientIP := proxy.ClientIP(c.GetHeader("X-Forwarded-For"), c.RemoteIP())

	result, err := h.bbs.Post(c.Request.Context(), body, clientIP)
	if err != nil {
		respondError(c, "bbs_post", clientIP, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}

func (h *Handler) Thumbnail(c *gin.Context) {
	rawURL := c.Query("url")

	img, err := h.thumbnails.Fetch(c.Request.Context(), rawURL)
	if err != nil {
		respondError(c, "thumbnail", rawURL, err)
		return
	}

	switch c.DefaultQuery("format", "raw") {
	case "datauri":
		c.JSON(http.StatusOK, gin.H{"dataUri": proxy.DataURI(img)})
	default:
		c.Data(http.StatusOK, img.ContentType, img.Body)
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now().In(time.Local).Format(time.RFC3339),
		"mirrors":    h.registry.Counts(),
		"categories": h.registry.Categories(),
	}

	if raceCount, err := h.statsRepo.GetRaceCount(); err == nil {
		health["races"] = raceCount
	} else {
		slog.Error("Database error", "operation", "get_race_count", "error", err)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "Tube Comb",
		"version":     cfg.GetVersion(),
		"description": "Video metadata aggregator racing interchangeable mirrors",
		"endpoints": map[string]string{
			"search":    "/api/search?q=<query>&page=<n>",
			"trending":  "/api/trending?region=<code>",
			"video":     "/api/videos/<id>",
			"comments":  "/api/comments/<id>?continuation=<token>",
			"channel":   "/api/channels/<id>",
			"playlist":  "/api/playlists/<id>",
			"stream":    "/api/streams/<id>?quality=360p|high",
			"suggest":   "/suggest?keyword=<text>",
			"thumbnail": "/api/thumbnail?url=<url>&format=raw|datauri",
			"bbs":       "/api/bbs/posts",
			"health":    "/health",
		},
	})
}

func (h *Handler) APIListMirrors(c *gin.Context) {
	stats, err := h.statsRepo.GetMirrorStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_mirror_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	mirrors := make([]map[string]interface{}, 0, len(stats))
	for _, s := range stats {
		info := map[string]interface{}{
			"mirror":       s.Mirror,
			"wins":         s.Wins,
			"failures":     s.Failures,
			"abandoned":    s.Abandoned,
			"avg_win_time": s.AvgWinTime.String(),
		}
		if s.LastProbe != nil {
			info["last_probe"] = map[string]interface{}{
				"ok":         s.LastProbe.OK,
				"status":     s.LastProbe.Status,
				"latency":    s.LastProbe.Latency.String(),
				"error":      s.LastProbe.Error,
				"checked_at": s.LastProbe.CheckedAt.In(time.Local).Format(time.RFC3339),
			}
		}
		mirrors = append(mirrors, info)
	}

	registry := make(map[string][]string, len(mirror.AllCategories))
	for _, category := range mirror.AllCategories {
		registry[string(category)] = h.registry.MirrorsFor(category)
	}

	c.JSON(http.StatusOK, gin.H{
		"mirrors":  mirrors,
		"total":    len(mirrors),
		"registry": registry,
	})
}

func (h *Handler) APIProbeMirrors(c *gin.Context) {
	queued := h.scheduler.EnqueueProbes()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Mirror probes enqueued",
		"queued":  queued,
	})
}
