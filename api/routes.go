package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/database"
	"github.com/uaffan326-del/video-library-system/models"
	"github.com/uaffan326-del/video-library-system/services"
)

var (
	cfg          *config.Config
	orchestrator *services.Orchestrator
)

func SetupRoutes(r *gin.Engine, conf *config.Config, orch *services.Orchestrator) {
	cfg = conf
	orchestrator = orch

	api := r.Group("/api")
	{
		api.GET("/clips", getClips)
		api.GET("/clips/:id", getClipDetails)
		api.GET("/clips/:id/media", serveClipMedia)
		api.GET("/thumbnails/*path", getThumbnail)

		api.POST("/search/lyric", searchByLyric)
		api.GET("/tags", getTags)
		api.GET("/stats", getStats)

		api.POST("/pipeline/start", startPipeline)
		api.POST("/pipeline/stop", stopPipeline)
		api.GET("/pipeline/status", getPipelineStatus)

		api.POST("/export", createExportJob)
		api.GET("/export/:jobID", getExportStatus)
		api.GET("/downloads/:filename", downloadExport)
	}
}

// getClips browses the library. With no filters it returns a random sample;
// any filter switches to a deterministic filtered query.
func getClips(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	filters := database.SearchFilters{
		Keywords:      database.ParseKeywords(c.Query("keywords")),
		Mood:          c.Query("mood"),
		Color:         c.Query("color"),
		MotionLevel:   c.Query("motion_level"),
		TempoCategory: c.Query("tempo_category"),
		AutoplayOnly:  c.Query("autoplay_only") == "true",
		Limit:         limit,
	}
	if bpm := c.Query("min_bpm"); bpm != "" {
		filters.MinBPM, _ = strconv.ParseFloat(bpm, 64)
	}
	if bpm := c.Query("max_bpm"); bpm != "" {
		filters.MaxBPM, _ = strconv.ParseFloat(bpm, 64)
	}

	var clips []models.Clip
	var err error
	if filters.Empty() {
		clips, err = database.RandomClips(database.DB, limit, database.SearchFilters{})
	} else {
		clips, err = database.SearchClips(database.DB, filters)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clips": clips, "count": len(clips)})
}

func getClipDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clip id"})
		return
	}

	clip, err := database.GetClipDetails(database.DB, uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}

	response := gin.H{"clip": clip}
	if analysis, err := database.LatestAnalysis(database.DB, clip.ID); err == nil {
		response["latest_analysis"] = analysis
	}
	c.JSON(http.StatusOK, response)
}

// serveClipMedia streams the clip file. A clip whose file vanished is an
// integrity fault: the record exists but the media does not.
func serveClipMedia(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clip id"})
		return
	}

	clip, err := database.GetClipDetails(database.DB, uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}

	if _, err := os.Stat(clip.FilePath); os.IsNotExist(err) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Clip media file is missing",
			"stage": "storage",
		})
		return
	}
	c.File(clip.FilePath)
}

// searchByLyric maps a lyric line to a matching clip: theme keywords first,
// then mood, then a random fallback.
func searchByLyric(c *gin.Context) {
	var req struct {
		Lyric string `json:"lyric" binding:"required"`
		Mood  string `json:"mood"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clip, err := database.ClipForLyric(database.DB, req.Lyric, req.Mood)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No clips in the library"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clip":     clip,
		"keywords": database.ExtractLyricKeywords(req.Lyric),
	})
}

func getTags(c *gin.Context) {
	values, err := database.GetTagValues(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, values)
}

func getStats(c *gin.Context) {
	stats, err := database.GetStats(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func startPipeline(c *gin.Context) {
	var req struct {
		Queries        []string `json:"queries" binding:"required"`
		VideosPerQuery int      `json:"videos_per_query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID, err := orchestrator.Start(req.Queries, req.VideosPerQuery)
	if err != nil {
		if err == services.ErrAlreadyRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "A pipeline run is already in progress"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func stopPipeline(c *gin.Context) {
	orchestrator.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func getPipelineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, orchestrator.Status())
}

func createExportJob(c *gin.Context) {
	var req services.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := services.QueueExport(database.DB, exportDir(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "pending"})
}

func getExportStatus(c *gin.Context) {
	jobID := c.Param("jobID")
	status, exists := services.GetExportStatus(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func downloadExport(c *gin.Context) {
	filename := c.Param("filename")
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename"})
		return
	}

	filePath := filepath.Join(exportDir(), filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return
	}
	c.File(filePath)
}

func exportDir() string {
	return filepath.Join(cfg.DataPath, "exports")
}
