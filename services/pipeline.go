package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/models"
)

const keyFramesPerClip = 5

// Pipeline stages. A run moves forward through the working stages and ends
// in exactly one of completed, stopped or error.
const (
	StageIdle         = "idle"
	StageDownloading  = "downloading"
	StageClipping     = "clipping"
	StageAnalyzing    = "analyzing"
	StageTagging      = "tagging"
	StageCategorizing = "categorizing"
	StageCompleted    = "completed"
	StageStopped      = "stopped"
	StageError        = "error"
)

// RunStatus is a point-in-time snapshot of the active (or last) run.
type RunStatus struct {
	RunID            string    `json:"run_id"`
	Stage            string    `json:"stage"`
	Queries          []string  `json:"queries"`
	StartedAt        time.Time `json:"started_at"`
	SourcesFound     int       `json:"sources_found"`
	VideosDownloaded int       `json:"videos_downloaded"`
	ClipsCreated     int       `json:"clips_created"`
	ClipsAnalyzed    int       `json:"clips_analyzed"`
	ClipsTagged      int       `json:"clips_tagged"`
	Failures         int       `json:"failures"`
	Percent          float64   `json:"percent"`
	LastError        string    `json:"last_error,omitempty"`
}

// runState guards the mutable status behind a RWMutex so API reads never
// race the worker goroutine.
type runState struct {
	mu     sync.RWMutex
	status RunStatus
}

func (s *runState) snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.Queries = append([]string(nil), s.status.Queries...)
	return status
}

func (s *runState) update(fn func(*RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

// Orchestrator drives the full acquisition and analysis pipeline. One run at
// a time per process; Start on a live run returns ErrAlreadyRunning.
type Orchestrator struct {
	db          *gorm.DB
	cfg         *config.Config
	scraper     *Scraper
	segmenter   *Segmenter
	extractor   *Extractor
	motion      *MotionAnalyzer
	tempo       *TempoAnalyzer
	compat      *CompatAnalyzer
	colors      *ColorAnalyzer
	tagger      Tagger
	categorizer *Categorizer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	state   *runState
}

func NewOrchestrator(db *gorm.DB, cfg *config.Config, scraper *Scraper, tagger Tagger) *Orchestrator {
	return &Orchestrator{
		db:          db,
		cfg:         cfg,
		scraper:     scraper,
		segmenter:   NewSegmenter(cfg),
		extractor:   NewExtractor(cfg),
		motion:      NewMotionAnalyzer(),
		tempo:       NewTempoAnalyzer(),
		compat:      NewCompatAnalyzer(),
		colors:      NewColorAnalyzer(),
		tagger:      tagger,
		categorizer: NewCategorizer(db),
		state:       &runState{status: RunStatus{Stage: StageIdle}},
	}
}

// Start launches a pipeline run over the given search queries. Returns the
// run ID immediately; the work happens on a background goroutine.
func (o *Orchestrator) Start(queries []string, videosPerQuery int) (string, error) {
	if len(queries) == 0 {
		return "", fmt.Errorf("no queries given")
	}
	if videosPerQuery <= 0 {
		videosPerQuery = 3
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return "", ErrAlreadyRunning
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	o.running = true
	o.cancel = cancel
	o.state.update(func(s *RunStatus) {
		*s = RunStatus{
			RunID:     runID,
			Stage:     StageDownloading,
			Queries:   queries,
			StartedAt: time.Now(),
		}
	})

	go o.run(ctx, queries, videosPerQuery)

	config.Log.WithField("run_id", runID).WithField("queries", len(queries)).Info("Pipeline run started")
	return runID, nil
}

// Stop requests a cooperative shutdown of the active run. Clips already
// persisted stay queryable.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running && o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) Status() RunStatus {
	return o.state.snapshot()
}

func (o *Orchestrator) finish(stage string, errMsg string) {
	o.state.update(func(s *RunStatus) {
		s.Stage = stage
		if stage == StageCompleted {
			s.Percent = 100
		}
		if errMsg != "" {
			s.LastError = errMsg
		}
	})
	o.mu.Lock()
	o.running = false
	o.cancel = nil
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, queries []string, videosPerQuery int) {
	filters := SourceFilters{
		MinDuration: o.cfg.ClipMinSeconds,
		MaxDuration: 600,
	}

	taggingDisabled := o.tagger == nil

	for qi, query := range queries {
		if ctx.Err() != nil {
			o.finish(StageStopped, "")
			return
		}

		o.state.update(func(s *RunStatus) {
			s.Stage = StageDownloading
			s.Percent = round2(float64(qi) / float64(len(queries)) * 100)
		})

		refs, err := o.scraper.SearchAll(ctx, query, videosPerQuery, filters)
		if err != nil {
			config.Log.WithField("query", query).WithField("error", err.Error()).
				Error("Search failed for query")
			o.state.update(func(s *RunStatus) { s.Failures++; s.LastError = err.Error() })
			continue
		}
		if len(refs) > videosPerQuery {
			refs = refs[:videosPerQuery]
		}
		o.state.update(func(s *RunStatus) { s.SourcesFound += len(refs) })

		for _, ref := range refs {
			if ctx.Err() != nil {
				o.finish(StageStopped, "")
				return
			}
			if err := o.processRef(ctx, ref, query, o.state, &taggingDisabled); err != nil {
				if ctx.Err() != nil {
					o.finish(StageStopped, "")
					return
				}
				config.Log.WithField("source", ref.Source).WithField("identifier", ref.Identifier).
					WithField("error", err.Error()).Error("Source processing failed")
				o.state.update(func(s *RunStatus) { s.Failures++; s.LastError = err.Error() })
			}
		}
	}

	if ctx.Err() != nil {
		o.finish(StageStopped, "")
		return
	}

	// A batch where acquisition produced nothing at all is a failed run, not
	// a completed one.
	final := o.Status()
	if final.VideosDownloaded == 0 {
		msg := final.LastError
		if msg == "" {
			msg = "no sources acquired for any query"
		}
		o.finish(StageError, msg)
		config.Log.WithField("run_id", final.RunID).Error("Pipeline run failed: nothing acquired")
		return
	}
	o.finish(StageCompleted, "")
	config.Log.WithField("run_id", final.RunID).Info("Pipeline run completed")
}

// processRef downloads one search result and runs it through the clip
// pipeline, reporting progress into the given state.
func (o *Orchestrator) processRef(ctx context.Context, ref VideoRef, query string, state *runState, taggingDisabled *bool) error {
	localPath, err := o.scraper.Download(ctx, ref)
	if err != nil {
		return err
	}
	state.update(func(s *RunStatus) { s.VideosDownloaded++ })

	source := models.SourceVideo{
		Source:     ref.Source,
		SourceURL:  ref.PageURL,
		Identifier: ref.Identifier,
		Title:      ref.Title,
		License:    ref.License,
		Query:      query,
		FilePath:   localPath,
		Duration:   ref.Duration,
		Width:      ref.Width,
		Height:     ref.Height,
		FileSize:   ref.FileSize,
	}
	if err := o.db.Where(models.SourceVideo{FilePath: localPath}).
		FirstOrCreate(&source).Error; err != nil {
		return fmt.Errorf("failed to record source video: %w", err)
	}

	return o.processSourceFile(ctx, &source, state, taggingDisabled)
}

// ProcessLocalFile handles a source video dropped into the downloads
// directory outside any pipeline run. Progress is tracked privately so the
// batch run status is never touched.
func (o *Orchestrator) ProcessLocalFile(ctx context.Context, path string) error {
	source := models.SourceVideo{
		Source:   "local",
		Title:    filepath.Base(path),
		FilePath: path,
	}
	if err := o.db.Where(models.SourceVideo{FilePath: path}).
		FirstOrCreate(&source).Error; err != nil {
		return fmt.Errorf("failed to record source video: %w", err)
	}
	taggingDisabled := o.tagger == nil
	state := &runState{status: RunStatus{Stage: StageClipping, StartedAt: time.Now()}}
	return o.processSourceFile(ctx, &source, state, &taggingDisabled)
}

// processSourceFile cuts one source into clips and analyzes each. Per-clip
// failures are logged and skipped; the source fails only if it cannot be cut
// at all.
func (o *Orchestrator) processSourceFile(ctx context.Context, source *models.SourceVideo, state *runState, taggingDisabled *bool) error {
	state.update(func(s *RunStatus) { s.Stage = StageClipping })

	descriptors, err := o.segmenter.SplitSource(ctx, source.FilePath)
	if err != nil {
		return err
	}

	for _, desc := range descriptors {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.processClip(ctx, source, desc, state, taggingDisabled); err != nil {
			config.Log.WithField("clip", desc.Path).WithField("error", err.Error()).
				Error("Clip processing failed")
			state.update(func(s *RunStatus) { s.Failures++; s.LastError = err.Error() })
		}
	}
	return nil
}

func (o *Orchestrator) processClip(ctx context.Context, source *models.SourceVideo, desc ClipDescriptor, state *runState, taggingDisabled *bool) error {
	var existing models.Clip
	if err := o.db.Where("file_path = ?", desc.Path).First(&existing).Error; err == nil {
		config.Log.WithField("clip", desc.Path).Debug("Clip already processed")
		return nil
	}

	clip := models.Clip{
		SourceVideoID: source.ID,
		SourceURL:     source.SourceURL,
		SourceName:    source.Source,
		FilePath:      desc.Path,
		StartTime:     desc.StartTime,
		EndTime:       desc.EndTime,
		Duration:      desc.EndTime - desc.StartTime,
		Width:         desc.Width,
		Height:        desc.Height,
		FileSize:      desc.FileSize,
	}

	state.update(func(s *RunStatus) { s.Stage = StageAnalyzing })

	frames, err := o.extractor.SampleFrames(ctx, desc.Path, keyFramesPerClip)
	if err != nil {
		return err
	}

	grayFrames, err := o.extractor.DecodeGrayFrames(ctx, desc.Path, 30)
	if err != nil {
		return err
	}
	motion := o.motion.Analyze(grayFrames)
	clip.MotionLevel = motion.Level
	clip.MotionScore = motion.Score
	clip.CameraMotion = motion.CameraMotion
	clip.ObjectMotion = motion.ObjectMotion

	samples, sampleRate, err := o.extractor.DecodeAudio(ctx, desc.Path)
	var tempo TempoResult
	switch {
	case err == nil:
		tempo = o.tempo.Analyze(samples, sampleRate)
	case isNoAudio(err):
		// Silent clip; tempo fields stay null.
	default:
		return err
	}
	clip.BPM = tempo.BPM
	clip.TempoCategory = tempo.TempoCategory
	clip.TempoStability = tempo.Stability
	clip.EnergyLevel = tempo.EnergyLevel

	compat, err := o.compat.Analyze(ctx, desc.Path)
	if err != nil {
		return err
	}
	clip.AutoplayCompatible = compat.AutoplayCompatible
	clip.WebOptimized = compat.WebOptimized
	clip.Container = compat.Container
	clip.VideoCodec = compat.VideoCodec
	clip.AudioCodec = compat.AudioCodec

	if err := o.db.Create(&clip).Error; err != nil {
		return fmt.Errorf("failed to persist clip: %w", err)
	}
	state.update(func(s *RunStatus) { s.ClipsCreated++; s.ClipsAnalyzed++ })

	for i, frame := range frames {
		keyFrame := models.KeyFrame{
			ClipID:           clip.ID,
			FrameIndex:       frame.Index,
			Timestamp:        frame.Timestamp,
			FramePath:        frame.FramePath,
			ThumbnailPath:    frame.ThumbnailPath,
			IsRepresentative: i == len(frames)/2,
		}
		if err := o.db.Create(&keyFrame).Error; err != nil {
			return fmt.Errorf("failed to persist key frame: %w", err)
		}
	}

	for _, color := range o.colors.Analyze(frames) {
		record := models.Color{
			ClipID:     clip.ID,
			Hex:        color.Hex,
			Name:       color.Name,
			Percentage: color.Percentage / 100,
		}
		if err := o.db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to persist color: %w", err)
		}
	}

	if !*taggingDisabled {
		state.update(func(s *RunStatus) { s.Stage = StageTagging })
		if err := o.tagClip(ctx, &clip, frames); err != nil {
			if isFatalTagging(err) {
				config.Log.WithField("error", err.Error()).
					Error("Tagging disabled for the rest of the run")
				*taggingDisabled = true
			} else if ctx.Err() != nil {
				return ctx.Err()
			} else {
				config.Log.WithField("clip_id", clip.ID).WithField("error", err.Error()).
					Warn("Tagging failed for clip")
			}
		} else {
			state.update(func(s *RunStatus) { s.ClipsTagged++ })
		}

		// Throttle between model calls.
		select {
		case <-time.After(o.cfg.TaggerDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	state.update(func(s *RunStatus) { s.Stage = StageCategorizing })
	if _, err := o.categorizer.CategorizeClip(&clip); err != nil {
		return fmt.Errorf("failed to categorize clip: %w", err)
	}
	if _, err := o.categorizer.SuggestUseCases(&clip); err != nil {
		return fmt.Errorf("failed to suggest use cases: %w", err)
	}

	config.Log.WithField("clip_id", clip.ID).WithField("motion", clip.MotionLevel).
		WithField("category", clip.Category).Info("Clip processed")
	return nil
}

// tagClip runs the AI tagger and persists its output. An empty (but
// successful) result still records an AIAnalysis row so the attempt is
// visible.
func (o *Orchestrator) tagClip(ctx context.Context, clip *models.Clip, frames []FrameSample) error {
	result, err := o.tagger.TagClip(ctx, frames)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode tag result: %w", err)
	}
	analysis := models.AIAnalysis{
		ClipID:     clip.ID,
		Model:      o.cfg.GeminiModel,
		ResultJSON: string(payload),
		AnalyzedAt: time.Now(),
	}
	if err := o.db.Create(&analysis).Error; err != nil {
		return fmt.Errorf("failed to persist analysis: %w", err)
	}

	createTag := func(tagType, value string, confidence float64) error {
		if value == "" {
			return nil
		}
		return o.db.Create(&models.Tag{
			ClipID:     clip.ID,
			TagType:    tagType,
			TagValue:   value,
			Confidence: confidence,
		}).Error
	}

	if err := createTag("theme", result.Theme, 0.9); err != nil {
		return err
	}
	if err := createTag("style", result.Style, 0.8); err != nil {
		return err
	}
	if err := createTag("energy", result.Energy, 0.8); err != nil {
		return err
	}
	for _, keyword := range result.Keywords {
		if err := createTag("keyword", keyword, 0.7); err != nil {
			return err
		}
	}
	for _, genre := range result.SuitableFor {
		if err := createTag("genre", genre, 0.6); err != nil {
			return err
		}
	}

	if result.Mood != "" {
		mood := models.Mood{
			ClipID:    clip.ID,
			MoodType:  result.Mood,
			Intensity: float64(result.MoodIntensity),
		}
		if err := o.db.Create(&mood).Error; err != nil {
			return fmt.Errorf("failed to persist mood: %w", err)
		}
	}
	return nil
}

func isNoAudio(err error) bool {
	return errors.Is(err, ErrNoAudio)
}

func isFatalTagging(err error) bool {
	return errors.Is(err, ErrTaggingFatal)
}

// CleanupSourceFile removes a processed source video from disk and marks the
// record deleted. Clips cut from it remain untouched.
func (o *Orchestrator) CleanupSourceFile(source *models.SourceVideo) error {
	if source.FilePath != "" {
		if err := os.Remove(source.FilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove source file: %w", err)
		}
	}
	return o.db.Delete(source).Error
}
