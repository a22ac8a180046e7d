package api

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uaffan326-del/video-library-system/config"
)

// getThumbnail serves a stored frame thumbnail, or generates one from a clip
// file with ffmpeg and caches it. Paths are relative to the frames or clips
// directory and must stay inside them.
func getThumbnail(c *gin.Context) {
	requestPath := c.Param("path")
	seekTime := c.DefaultQuery("time", "0.1")
	widthStr := c.DefaultQuery("w", "480")

	if _, err := strconv.ParseFloat(seekTime, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time parameter"})
		return
	}
	width, err := strconv.Atoi(widthStr)
	if err != nil || width < 10 || width > 1920 {
		width = 480
	}

	// Stored frame images serve directly.
	if framePath, ok := resolveInside(cfg.FramesDir, requestPath); ok {
		if info, err := os.Stat(framePath); err == nil && !info.IsDir() {
			c.File(framePath)
			return
		}
	}

	clipPath, ok := resolveInside(cfg.ClipsDir, requestPath)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if _, err := os.Stat(clipPath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	thumbDir := filepath.Join(cfg.DataPath, "thumbnails")
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		config.Log.WithField("error", err.Error()).Error("Failed to create thumbnail dir")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	// Cache key covers path, time and width.
	cacheKey := fmt.Sprintf("%s|%s|%d", clipPath, seekTime, width)
	hash := md5.Sum([]byte(cacheKey))
	thumbPath := filepath.Join(thumbDir, hex.EncodeToString(hash[:])+".jpg")

	if info, err := os.Stat(thumbPath); err == nil {
		if info.Size() > 0 {
			c.File(thumbPath)
			return
		}
		os.Remove(thumbPath)
	}

	vf := fmt.Sprintf("scale=%d:-1", width)
	cmd := exec.Command("ffmpeg", "-y", "-ss", seekTime, "-i", clipPath,
		"-vframes", "1", "-vf", vf, "-q:v", "5", thumbPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		config.Log.WithField("error", err.Error()).WithField("output", string(out)).
			Error("Thumbnail generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate thumbnail"})
		return
	}

	c.File(thumbPath)
}

// resolveInside joins a request path onto a base directory and confirms the
// result cannot escape it.
func resolveInside(baseDir, requestPath string) (string, bool) {
	cleanBase := filepath.Clean(baseDir)
	cleanRequest := filepath.Clean(requestPath)

	var fullPath string
	if strings.HasPrefix(cleanRequest, cleanBase) {
		fullPath = cleanRequest
	} else {
		fullPath = filepath.Join(cleanBase, cleanRequest)
	}

	if fullPath != cleanBase && !strings.HasPrefix(fullPath, cleanBase+string(os.PathSeparator)) {
		return "", false
	}
	return fullPath, true
}
