package api

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"
)

// videoFilenameRe rejects path traversal and anything that is not a plain
// .webm filename.
var videoFilenameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+\.webm$`)

// GetVideo serves a recorded video by filename. This supports previewing
// recordings before the caller has stored the run result.
// GET /videos/:filename
func (h *Handler) GetVideo(c echo.Context) error {
	filename := c.Param("filename")
	if !videoFilenameRe.MatchString(filename) || filename != filepath.Base(filename) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid video filename"})
	}

	path := filepath.Join(h.config.VideosDir, filename)
	if _, err := os.Stat(path); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "video not found"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "video/webm")
	return c.File(path)
}
