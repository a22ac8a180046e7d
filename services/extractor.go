package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/uaffan326-del/video-library-system/config"
)

// Analyzers consume downsampled grayscale frames; 320x240 keeps optical flow
// cheap without losing the motion signal.
const (
	analysisFrameWidth  = 320
	analysisFrameHeight = 240

	audioSampleRate = 22050
)

// GrayFrame is one decoded grayscale frame.
type GrayFrame struct {
	Width  int
	Height int
	Pix    []uint8 // row-major, len == Width*Height
}

// FrameSample is a sampled frame written to durable storage.
type FrameSample struct {
	Index         int
	Timestamp     float64 // offset within the clip, seconds
	FramePath     string
	ThumbnailPath string
	JPEG          []byte // in-memory copy for the AI tagger
}

// Extractor samples frames and demuxes audio from clips.
type Extractor struct {
	FramesDir     string
	DecodeTimeout time.Duration
}

func NewExtractor(cfg *config.Config) *Extractor {
	return &Extractor{
		FramesDir:     cfg.FramesDir,
		DecodeTimeout: cfg.DecodeTimeout,
	}
}

// SampleFrames extracts numFrames evenly spaced JPEG frames plus thumbnails
// and writes them under FramesDir/<clip-name>/.
func (e *Extractor) SampleFrames(ctx context.Context, clipPath string, numFrames int) ([]FrameSample, error) {
	probeCtx, cancel := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel()

	info, err := ProbeMedia(probeCtx, clipPath)
	if err != nil {
		return nil, err
	}
	if numFrames <= 0 {
		numFrames = 3
	}

	baseName := strings.TrimSuffix(filepath.Base(clipPath), filepath.Ext(clipPath))
	frameDir := filepath.Join(e.FramesDir, baseName)
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return nil, err
	}

	var samples []FrameSample
	for i := 0; i < numFrames; i++ {
		ts := float64(i+1) * info.Duration / float64(numFrames+1)

		framePath := filepath.Join(frameDir, fmt.Sprintf("frame_%02d.jpg", i+1))
		thumbPath := filepath.Join(frameDir, fmt.Sprintf("thumb_%02d.jpg", i+1))

		if err := e.grabFrame(ctx, clipPath, framePath, ts, 0); err != nil {
			config.Log.WithField("clip", clipPath).WithError(err).Warn("Failed to sample frame")
			continue
		}
		if err := e.grabFrame(ctx, clipPath, thumbPath, ts, 320); err != nil {
			config.Log.WithField("clip", clipPath).WithError(err).Warn("Failed to write thumbnail")
		}

		data, err := os.ReadFile(framePath)
		if err != nil {
			continue
		}

		samples = append(samples, FrameSample{
			Index:         i,
			Timestamp:     ts,
			FramePath:     framePath,
			ThumbnailPath: thumbPath,
			JPEG:          data,
		})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no frames extracted from %s", ErrMediaUnreadable, clipPath)
	}
	return samples, nil
}

// grabFrame writes a single JPEG at the given timestamp. width 0 keeps the
// source resolution; otherwise the frame is scaled down preserving aspect.
func (e *Extractor) grabFrame(ctx context.Context, clipPath, outPath string, ts float64, width int) error {
	grabCtx, cancel := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", ts),
		"-i", clipPath,
		"-vframes", "1",
		"-q:v", "5",
	}
	if width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-1", width))
	}
	args = append(args, "-y", outPath)

	cmd := exec.CommandContext(grabCtx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg frame grab failed: %v: %s", err, string(out))
	}
	return nil
}

// DecodeGrayFrames decodes up to sampleFrames evenly spaced grayscale frames
// for motion analysis.
func (e *Extractor) DecodeGrayFrames(ctx context.Context, clipPath string, sampleFrames int) ([]GrayFrame, error) {
	probeCtx, cancel := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel()

	info, err := ProbeMedia(probeCtx, clipPath)
	if err != nil {
		return nil, err
	}
	if sampleFrames <= 0 {
		sampleFrames = 30
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: zero duration for %s", ErrMediaUnreadable, clipPath)
	}

	fps := float64(sampleFrames) / info.Duration

	decodeCtx, cancel2 := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel2()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", clipPath,
		"-vf", fmt.Sprintf("fps=%.4f,scale=%d:%d", fps, analysisFrameWidth, analysisFrameHeight),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
		"-",
	}

	cmd := exec.CommandContext(decodeCtx, "ffmpeg", args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: raw decode failed for %s: %v", ErrMediaUnreadable, clipPath, err)
	}

	frameSize := analysisFrameWidth * analysisFrameHeight
	raw := stdout.Bytes()

	var frames []GrayFrame
	for off := 0; off+frameSize <= len(raw); off += frameSize {
		pix := make([]uint8, frameSize)
		copy(pix, raw[off:off+frameSize])
		frames = append(frames, GrayFrame{
			Width:  analysisFrameWidth,
			Height: analysisFrameHeight,
			Pix:    pix,
		})
	}
	return frames, nil
}

// DecodeAudio demuxes the audio track as mono PCM at 22050 Hz, normalized to
// [-1,1]. Clips without an audio stream return ErrNoAudio so callers can
// degrade instead of fail.
func (e *Extractor) DecodeAudio(ctx context.Context, clipPath string) ([]float64, int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel()

	info, err := ProbeMedia(probeCtx, clipPath)
	if err != nil {
		return nil, 0, err
	}
	if !info.HasAudio {
		return nil, 0, ErrNoAudio
	}

	decodeCtx, cancel2 := context.WithTimeout(ctx, e.DecodeTimeout)
	defer cancel2()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", clipPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", audioSampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(decodeCtx, "ffmpeg", args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("%w: audio decode failed for %s: %v", ErrMediaUnreadable, clipPath, err)
	}

	raw := stdout.Bytes()
	samples := make([]float64, 0, len(raw)/2)
	for off := 0; off+2 <= len(raw); off += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
		samples = append(samples, float64(v)/32768.0)
	}

	if len(samples) == 0 {
		return nil, 0, ErrNoAudio
	}
	return samples, audioSampleRate, nil
}
