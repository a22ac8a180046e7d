package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/models"
)

// stubTagger returns a canned result without touching the network.
type stubTagger struct {
	result TagResult
	err    error
}

func (s stubTagger) TagClip(ctx context.Context, frames []FrameSample) (TagResult, error) {
	return s.result, s.err
}

// beginRun puts the orchestrator into the state Start leaves behind, without
// spawning the worker goroutine.
func beginRun(o *Orchestrator, queries []string) {
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()
	o.state.update(func(s *RunStatus) {
		*s = RunStatus{RunID: "run-test", Stage: StageDownloading, Queries: queries, StartedAt: time.Now()}
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataPath:          dir,
		DownloadDir:       dir,
		ClipsDir:          dir,
		FramesDir:         dir,
		ClipMinSeconds:    3,
		ClipMaxSeconds:    10,
		MaxClipsPerSource: 10,
	}
}

func TestOrchestrator_StartValidation(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	_, err := o.Start(nil, 3)
	assert.Error(t, err, "empty query list must be rejected")
	assert.Equal(t, StageIdle, o.Status().Stage)
}

func TestOrchestrator_AlreadyRunning(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	// Simulate a live run without touching the network.
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	_, err := o.Start([]string{"forest"}, 1)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestOrchestrator_StopWithoutRun(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	// Stop on an idle orchestrator is a no-op, not a panic.
	o.Stop()
	assert.Equal(t, StageIdle, o.Status().Stage)
}

func TestOrchestrator_RunWithNothingAcquiredEndsInError(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	queries := []string{"forest", "city"}
	beginRun(o, queries)
	o.run(context.Background(), queries, 1)

	status := o.Status()
	assert.Equal(t, StageError, status.Stage, "a run that acquires nothing must not end completed")
	assert.Equal(t, 2, status.Failures)
	assert.NotEmpty(t, status.LastError)
	assert.Equal(t, 0, status.VideosDownloaded)

	// The terminal state releases the run slot.
	_, err := o.Start([]string{"forest"}, 1)
	assert.NoError(t, err)
	o.Stop()
}

func TestOrchestrator_StopMidRunKeepsClipsAndReportsStopped(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	clip := models.Clip{FilePath: "/clips/persisted.mp4", Duration: 5}
	assert.NoError(t, db.Create(&clip).Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	beginRun(o, []string{"forest"})
	o.run(ctx, []string{"forest"}, 1)

	assert.Equal(t, StageStopped, o.Status().Stage)

	var stored models.Clip
	assert.NoError(t, db.Where("file_path = ?", clip.FilePath).First(&stored).Error)
}

func TestOrchestrator_LocalFileLeavesRunStatusAlone(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, nil)

	err := o.ProcessLocalFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
	assert.Equal(t, StageIdle, o.Status().Stage, "local files must not bleed into batch status")
}

func TestTagClip_EmptyResultStillRecordsAnalysis(t *testing.T) {
	db := openTestDB(t)
	o := NewOrchestrator(db, testConfig(t), &Scraper{}, stubTagger{})

	clip := models.Clip{FilePath: "/clips/tagged.mp4", Duration: 5}
	assert.NoError(t, db.Create(&clip).Error)

	err := o.tagClip(context.Background(), &clip, []FrameSample{{JPEG: []byte{0xff, 0xd8}}})
	assert.NoError(t, err, "an empty analysis is recorded, not fatal")

	var analyses int
	db.Model(&models.AIAnalysis{}).Where("clip_id = ?", clip.ID).Count(&analyses)
	assert.Equal(t, 1, analyses)

	var tags int
	db.Model(&models.Tag{}).Where("clip_id = ?", clip.ID).Count(&tags)
	assert.Equal(t, 0, tags)
}

func TestRunState_SnapshotIsolation(t *testing.T) {
	state := &runState{status: RunStatus{Stage: StageIdle, Queries: []string{"a"}}}

	snap := state.snapshot()
	snap.Queries[0] = "mutated"
	snap.Stage = StageError

	fresh := state.snapshot()
	assert.Equal(t, "a", fresh.Queries[0], "snapshot must not alias internal state")
	assert.Equal(t, StageIdle, fresh.Stage)
}

func TestRunState_ConcurrentAccess(t *testing.T) {
	state := &runState{}
	done := make(chan struct{})

	go func() {
		for i := 0; i < 1000; i++ {
			state.update(func(s *RunStatus) { s.ClipsCreated++ })
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		_ = state.snapshot()
	}
	<-done

	assert.Equal(t, 1000, state.snapshot().ClipsCreated)
}
