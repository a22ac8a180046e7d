package services

import (
	"context"
	"encoding/binary"
	"os"
	"strings"
)

// faststartScanLimit bounds how far into an MP4 we look for the moov atom.
// A properly optimized file has it within the first megabyte.
const faststartScanLimit = 1 << 20

var (
	autoplayContainers = map[string]bool{
		"mp4":  true,
		"webm": true,
		"ogv":  true,
		"ogg":  true,
	}
	autoplayVideoCodecs = map[string]bool{
		"h264": true,
		"vp8":  true,
		"vp9":  true,
		"av1":  true,
	}
)

// CompatResult describes how well a clip plays in browser autoplay contexts.
type CompatResult struct {
	AutoplayCompatible bool   `json:"autoplay_compatible"`
	WebOptimized       bool   `json:"web_optimized"`
	Container          string `json:"container"`
	VideoCodec         string `json:"video_codec"`
	AudioCodec         string `json:"audio_codec"`
	Reason             string `json:"reason,omitempty"`
}

// CompatAnalyzer checks container, codec and stream layout against what
// browsers will autoplay. Total over its inputs; unknown formats come back
// not compatible rather than erroring.
type CompatAnalyzer struct{}

func NewCompatAnalyzer() *CompatAnalyzer {
	return &CompatAnalyzer{}
}

// Evaluate applies the container and codec rules. streamable reports whether
// the file's index precedes its media data (always true for non-MP4
// containers that stream by design).
func (a *CompatAnalyzer) Evaluate(container, videoCodec, audioCodec string, streamable bool) CompatResult {
	result := CompatResult{
		Container:  container,
		VideoCodec: videoCodec,
		AudioCodec: audioCodec,
	}

	c := normalizeContainer(container)
	if !autoplayContainers[c] {
		result.Reason = "container not autoplay safe"
		return result
	}
	if !autoplayVideoCodecs[strings.ToLower(videoCodec)] {
		result.Reason = "video codec not autoplay safe"
		return result
	}

	result.AutoplayCompatible = true
	if c == "mp4" && !streamable {
		result.Reason = "moov atom after media data"
		return result
	}
	result.WebOptimized = true
	return result
}

// Analyze probes the file and evaluates it, including the MP4 atom scan.
func (a *CompatAnalyzer) Analyze(ctx context.Context, path string) (CompatResult, error) {
	info, err := ProbeMedia(ctx, path)
	if err != nil {
		return CompatResult{}, err
	}

	container := normalizeContainer(info.FormatName)
	streamable := true
	if container == "mp4" {
		streamable = mp4FastStart(path)
	}
	return a.Evaluate(container, info.VideoCodec, info.AudioCodec, streamable), nil
}

// normalizeContainer maps ffprobe's comma-separated format names to a single
// container label ("mov,mp4,m4a,3gp,3g2,mj2" means mp4 in practice).
func normalizeContainer(format string) string {
	f := strings.ToLower(format)
	switch {
	case strings.Contains(f, "mp4") || strings.Contains(f, "mov"):
		return "mp4"
	case strings.Contains(f, "webm") || strings.Contains(f, "matroska"):
		return "webm"
	case strings.Contains(f, "ogg"):
		return "ogv"
	default:
		if i := strings.IndexByte(f, ','); i > 0 {
			return f[:i]
		}
		return f
	}
}

// mp4FastStart walks top-level MP4 boxes and reports whether moov appears
// before mdat within the scan limit. A malformed or unreadable file counts
// as not optimized.
func mp4FastStart(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var offset int64
	header := make([]byte, 8)
	for offset < faststartScanLimit {
		if _, err := f.ReadAt(header, offset); err != nil {
			return false
		}
		size := int64(binary.BigEndian.Uint32(header[:4]))
		boxType := string(header[4:8])

		switch boxType {
		case "moov":
			return true
		case "mdat":
			return false
		}

		switch size {
		case 0:
			// Box extends to end of file.
			return false
		case 1:
			// 64-bit size follows the header.
			ext := make([]byte, 8)
			if _, err := f.ReadAt(ext, offset+8); err != nil {
				return false
			}
			size = int64(binary.BigEndian.Uint64(ext))
		}
		if size < 8 {
			return false
		}
		offset += size
	}
	return false
}
