package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/uaffan326-del/video-library-system/config"
)

// Segmenter splits a source video into an ordered sequence of non-overlapping
// clips whose durations fall within [MinSeconds, MaxSeconds]. The trailing
// remainder shorter than MinSeconds is dropped.
type Segmenter struct {
	OutputDir     string
	MinSeconds    float64
	MaxSeconds    float64
	MaxClips      int
	DecodeTimeout time.Duration
}

// ClipDescriptor describes one cut clip on disk.
type ClipDescriptor struct {
	Path      string
	StartTime float64
	EndTime   float64
	Width     int
	Height    int
	FileSize  int64
}

func NewSegmenter(cfg *config.Config) *Segmenter {
	return &Segmenter{
		OutputDir:     cfg.ClipsDir,
		MinSeconds:    cfg.ClipMinSeconds,
		MaxSeconds:    cfg.ClipMaxSeconds,
		MaxClips:      cfg.MaxClipsPerSource,
		DecodeTimeout: cfg.DecodeTimeout,
	}
}

// SegmentPlan is a planned (not yet cut) clip window within the source.
type SegmentPlan struct {
	Start    float64
	Duration float64
}

// PlanSegments computes the clip windows for a source of the given total
// duration. The segment length is the midpoint of [min,max] so planning is
// reproducible; a final remainder still >= min is emitted as a shorter clip,
// anything below min is dropped.
func PlanSegments(totalDuration, min, max float64, maxClips int) []SegmentPlan {
	if totalDuration < min || min <= 0 || max < min {
		return nil
	}

	length := (min + max) / 2
	var plans []SegmentPlan

	start := 0.0
	for start+length <= totalDuration {
		if maxClips > 0 && len(plans) >= maxClips {
			return plans
		}
		plans = append(plans, SegmentPlan{Start: start, Duration: length})
		start += length
	}

	remainder := totalDuration - start
	if remainder >= min && (maxClips <= 0 || len(plans) < maxClips) {
		plans = append(plans, SegmentPlan{Start: start, Duration: remainder})
	}
	return plans
}

// SplitSource probes the source and cuts it into clips. A source that cannot
// be decoded returns ErrMediaUnreadable; a source shorter than MinSeconds
// yields an empty sequence.
func (s *Segmenter) SplitSource(ctx context.Context, sourcePath string) ([]ClipDescriptor, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.DecodeTimeout)
	defer cancel()

	info, err := ProbeMedia(probeCtx, sourcePath)
	if err != nil {
		return nil, err
	}

	plans := PlanSegments(info.Duration, s.MinSeconds, s.MaxSeconds, s.MaxClips)
	if len(plans) == 0 {
		config.Log.WithField("source", sourcePath).
			WithField("duration", info.Duration).
			Info("Source too short to segment, skipping")
		return nil, nil
	}

	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return nil, err
	}

	baseName := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	var clips []ClipDescriptor
	for i, plan := range plans {
		outputPath := filepath.Join(s.OutputDir, fmt.Sprintf("%s_clip_%03d.mp4", baseName, i+1))

		// Re-runs of the same source resume cheaply.
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			if err := s.cutClip(ctx, sourcePath, outputPath, plan); err != nil {
				config.Log.WithField("source", sourcePath).
					WithField("clip", i+1).
					WithError(err).
					Warn("Failed to cut clip")
				continue
			}
		}

		var size int64
		if fi, err := os.Stat(outputPath); err == nil {
			size = fi.Size()
		}

		clips = append(clips, ClipDescriptor{
			Path:      outputPath,
			StartTime: plan.Start,
			EndTime:   plan.Start + plan.Duration,
			Width:     info.Width,
			Height:    info.Height,
			FileSize:  size,
		})
	}
	return clips, nil
}

func (s *Segmenter) cutClip(ctx context.Context, inputPath, outputPath string, plan SegmentPlan) error {
	cutCtx, cancel := context.WithTimeout(ctx, s.DecodeTimeout)
	defer cancel()

	// Re-encode to H.264/AAC with faststart so every clip is web-playable
	// regardless of the source codec.
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", plan.Start),
		"-t", fmt.Sprintf("%.3f", plan.Duration),
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y", outputPath,
	}

	cmd := exec.CommandContext(cutCtx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg cut failed: %v: %s", err, string(out))
	}
	return nil
}
