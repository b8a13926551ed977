// Package recipes serves the sqlite mirror of the corpus over HTTP.
package recipes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ricettario/pkg/logger"
)

type Handler struct {
	Repo *Repo
	Log  logger.Logger
}

func NewHandler(repo *Repo, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Repo: repo, Log: log}
}

// RegisterRoutes mounts /recipes and /videos on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/recipes", h.list)        // GET /recipes
	rg.GET("/recipes/:id", h.getByID) // GET /recipes/:id
	rg.GET("/videos", h.video)        // GET /videos?title=
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Limit:  clampLimit(parseInt(c.Query("limit"), DefaultLimit)),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	// tag=Dolci,Primi OR tag=Dolci&tag=Primi
	tags := c.QueryArray("tag")
	if len(tags) == 1 {
		tags = strings.Split(tags[0], ",")
	}
	q.Tags = tags

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		h.Log.Error("Count recipes failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.Log.Error("List recipes failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	r, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Log.Error("Get recipe failed", logger.String("id", c.Param("id")), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) video(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	v, err := h.Repo.VideoByTitle(c.Request.Context(), title)
	if err != nil {
		h.Log.Error("Video lookup failed", logger.String("title", title), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if v == nil || !v.Resolved() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no video"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
