package pages

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler serves the bundled web pages from a directory on disk. The API is
// fully usable without it; when Dir is empty or missing, no routes register.
type Handler struct {
	Dir string
}

// NewHandler constructs a pages Handler rooted at dir.
func NewHandler(dir string) *Handler {
	return &Handler{Dir: strings.TrimSpace(dir)}
}

// Enabled reports whether a usable web directory was configured.
func (h *Handler) Enabled() bool {
	if h.Dir == "" {
		return false
	}
	info, err := os.Stat(h.Dir)
	return err == nil && info.IsDir()
}

// RegisterRoutes attaches page routes to the engine root.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	if !h.Enabled() {
		return
	}

	r.GET("/", h.page("index.html"))
	r.GET("/chat", h.page("chat.html"))
	r.GET("/analyzer", h.page("analyzer.html"))
	r.Static("/static", filepath.Join(h.Dir, "static"))

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "route not found"}})
			return
		}
		h.serve(c, "404.html", http.StatusNotFound)
	})
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.serve(c, name, http.StatusOK)
	}
}

func (h *Handler) serve(c *gin.Context, name string, status int) {
	b, err := os.ReadFile(filepath.Join(h.Dir, name))
	if err != nil {
		c.String(http.StatusNotFound, "page not found")
		return
	}
	c.Data(status, "text/html; charset=utf-8", b)
}
