package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/models"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// DownloadsWatcher picks up source videos dropped into the downloads
// directory by hand and feeds them through the same pipeline as scraped
// ones.
type DownloadsWatcher struct {
	DownloadDir  string
	Orchestrator *Orchestrator
	Watcher      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewDownloadsWatcher(downloadDir string, orchestrator *Orchestrator) *DownloadsWatcher {
	return &DownloadsWatcher{
		DownloadDir:  downloadDir,
		Orchestrator: orchestrator,
		pending:      map[string]time.Time{},
	}
}

func (w *DownloadsWatcher) Start() {
	// Initial scan picks up files that arrived while we were down.
	go w.ScanExisting()

	var err error
	w.Watcher, err = fsnotify.NewWatcher()
	if err != nil {
		config.Log.WithField("error", err.Error()).Error("Failed to create downloads watcher")
		return
	}

	go func() {
		// Files appear before they finish writing. Collect create/write
		// events and process a file once it has been quiet for a while.
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-w.Watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !videoExtensions[strings.ToLower(filepath.Ext(event.Name))] {
					continue
				}
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			case <-ticker.C:
				w.processSettled()
			case err, ok := <-w.Watcher.Errors:
				if !ok {
					return
				}
				config.Log.WithField("error", err.Error()).Warn("Downloads watcher error")
			}
		}
	}()

	if err := w.Watcher.Add(w.DownloadDir); err != nil {
		config.Log.WithField("path", w.DownloadDir).WithField("error", err.Error()).
			Error("Failed to watch downloads directory")
	}
}

func (w *DownloadsWatcher) Stop() {
	if w.Watcher != nil {
		w.Watcher.Close()
	}
}

// processSettled handles files whose last event is old enough that the
// writer is presumably done.
func (w *DownloadsWatcher) processSettled() {
	cutoff := time.Now().Add(-5 * time.Second)

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.processFile(path)
	}
}

// ScanExisting walks the downloads directory and processes any video not
// yet recorded as a source.
func (w *DownloadsWatcher) ScanExisting() {
	start := time.Now()
	count := 0

	filepath.Walk(w.DownloadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		var existing models.SourceVideo
		if err := w.Orchestrator.db.Where("file_path = ?", path).First(&existing).Error; err == nil {
			return nil
		}
		w.processFile(path)
		count++
		return nil
	})

	if count > 0 {
		config.Log.WithField("count", count).WithField("elapsed", time.Since(start).String()).
			Info("Processed existing downloads")
	}
}

func (w *DownloadsWatcher) processFile(path string) {
	config.Log.WithField("file", path).Info("Processing local source video")
	if err := w.Orchestrator.ProcessLocalFile(context.Background(), path); err != nil {
		config.Log.WithField("file", path).WithField("error", err.Error()).
			Error("Failed to process local source video")
	}
}
