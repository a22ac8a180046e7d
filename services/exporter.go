package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/database"
	"github.com/uaffan326-del/video-library-system/models"
)

// ExportRequest selects the clips to bundle. Filters mirror the search API.
type ExportRequest struct {
	Keywords      string `json:"keywords"`
	Mood          string `json:"mood"`
	MotionLevel   string `json:"motion_level"`
	TempoCategory string `json:"tempo_category"`
	AutoplayOnly  bool   `json:"autoplay_only"`
	Limit         int    `json:"limit"`
}

// ExportStatus tracks one background export job.
type ExportStatus struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"` // "pending", "processing", "completed", "failed"
	Progress  float64 `json:"progress"`
	ClipCount int     `json:"clip_count"`
	FilePath  string  `json:"file_path"`
	Error     string  `json:"error,omitempty"`
	CreatedAt time.Time
}

var (
	exportQueue     = make(map[string]*ExportStatus)
	exportQueueLock sync.Mutex
)

const MaxConcurrentExports = 3

var (
	activeExports     int
	activeExportsLock sync.Mutex
)

func init() {
	go cleanupExportHistory()
}

// QueueExport starts a background job bundling the clips matched by the
// request into a ZIP with a metadata manifest. Returns the job ID.
func QueueExport(db *gorm.DB, exportDir string, req ExportRequest) (string, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	clips, err := database.SearchClips(db, database.SearchFilters{
		Keywords:      database.ParseKeywords(req.Keywords),
		Mood:          req.Mood,
		MotionLevel:   req.MotionLevel,
		TempoCategory: req.TempoCategory,
		AutoplayOnly:  req.AutoplayOnly,
		Limit:         limit,
	})
	if err != nil {
		return "", err
	}
	if len(clips) == 0 {
		return "", fmt.Errorf("no clips matched the export filters")
	}

	activeExportsLock.Lock()
	if activeExports >= MaxConcurrentExports {
		activeExportsLock.Unlock()
		return "", fmt.Errorf("server busy: too many concurrent exports")
	}
	activeExports++
	activeExportsLock.Unlock()

	jobID := fmt.Sprintf("export_%s", uuid.New().String()[:8])
	status := &ExportStatus{
		JobID:     jobID,
		Status:    "pending",
		ClipCount: len(clips),
		CreatedAt: time.Now(),
	}

	exportQueueLock.Lock()
	exportQueue[jobID] = status
	exportQueueLock.Unlock()

	go func() {
		defer func() {
			activeExportsLock.Lock()
			activeExports--
			activeExportsLock.Unlock()
		}()
		processExport(db, exportDir, jobID, clips)
	}()

	return jobID, nil
}

// GetExportStatus returns the status of a job.
func GetExportStatus(jobID string) (*ExportStatus, bool) {
	exportQueueLock.Lock()
	defer exportQueueLock.Unlock()
	status, exists := exportQueue[jobID]
	return status, exists
}

func cleanupExportHistory() {
	for {
		time.Sleep(10 * time.Minute)
		exportQueueLock.Lock()
		for id, status := range exportQueue {
			if time.Since(status.CreatedAt) > 1*time.Hour {
				delete(exportQueue, id)
			}
		}
		exportQueueLock.Unlock()
	}
}

// manifestEntry is one clip's metadata inside the export manifest.
type manifestEntry struct {
	FileName      string   `json:"file_name"`
	SourceName    string   `json:"source_name"`
	SourceURL     string   `json:"source_url"`
	Duration      float64  `json:"duration"`
	MotionLevel   string   `json:"motion_level"`
	BPM           *float64 `json:"bpm"`
	TempoCategory *string  `json:"tempo_category"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	Moods         []string `json:"moods"`
}

func processExport(db *gorm.DB, exportDir, jobID string, clips []models.Clip) {
	updateExportStatus(jobID, "processing", 0, "")

	if err := os.MkdirAll(exportDir, 0755); err != nil {
		updateExportStatus(jobID, "failed", 0, "Failed to create export directory: "+err.Error())
		return
	}
	outputFilename := fmt.Sprintf("clips_%s.zip", jobID)
	outputPath := filepath.Join(exportDir, outputFilename)

	out, err := os.Create(outputPath)
	if err != nil {
		updateExportStatus(jobID, "failed", 0, "Failed to create archive: "+err.Error())
		return
	}
	defer out.Close()

	archive := zip.NewWriter(out)
	var manifest []manifestEntry
	added := 0

	for i, clip := range clips {
		entry, err := addClipToArchive(db, archive, clip)
		if err != nil {
			config.Log.WithField("clip_id", clip.ID).WithField("error", err.Error()).
				Warn("Skipping clip in export")
			continue
		}
		manifest = append(manifest, entry)
		added++
		updateExportStatus(jobID, "processing", float64(i+1)/float64(len(clips))*90, "")
	}

	if added == 0 {
		archive.Close()
		os.Remove(outputPath)
		updateExportStatus(jobID, "failed", 0, "No clip files were readable")
		return
	}

	manifestWriter, err := archive.Create("manifest.json")
	if err == nil {
		payload, _ := json.MarshalIndent(manifest, "", "  ")
		manifestWriter.Write(payload)
	}

	if err := archive.Close(); err != nil {
		updateExportStatus(jobID, "failed", 0, "Failed to finalize archive: "+err.Error())
		return
	}

	updateExportStatus(jobID, "completed", 100, "")
	exportQueueLock.Lock()
	if status, ok := exportQueue[jobID]; ok {
		status.FilePath = outputFilename
		status.ClipCount = added
	}
	exportQueueLock.Unlock()

	config.Log.WithField("job_id", jobID).WithField("clips", added).Info("Export completed")
}

func addClipToArchive(db *gorm.DB, archive *zip.Writer, clip models.Clip) (manifestEntry, error) {
	file, err := os.Open(clip.FilePath)
	if err != nil {
		return manifestEntry{}, err
	}
	defer file.Close()

	name := filepath.Base(clip.FilePath)
	writer, err := archive.Create(name)
	if err != nil {
		return manifestEntry{}, err
	}
	if _, err := io.Copy(writer, file); err != nil {
		return manifestEntry{}, err
	}

	var tags []models.Tag
	db.Where("clip_id = ?", clip.ID).Find(&tags)
	var moods []models.Mood
	db.Where("clip_id = ?", clip.ID).Find(&moods)

	tagValues := make([]string, len(tags))
	for i, t := range tags {
		tagValues[i] = t.TagValue
	}
	moodValues := make([]string, len(moods))
	for i, m := range moods {
		moodValues[i] = m.MoodType
	}

	return manifestEntry{
		FileName:      name,
		SourceName:    clip.SourceName,
		SourceURL:     clip.SourceURL,
		Duration:      clip.Duration,
		MotionLevel:   clip.MotionLevel,
		BPM:           clip.BPM,
		TempoCategory: clip.TempoCategory,
		Category:      clip.Category,
		Tags:          tagValues,
		Moods:         moodValues,
	}, nil
}

func updateExportStatus(jobID, state string, progress float64, errMsg string) {
	exportQueueLock.Lock()
	defer exportQueueLock.Unlock()
	if status, ok := exportQueue[jobID]; ok {
		status.Status = state
		status.Progress = progress
		status.Error = errMsg
	}
}
