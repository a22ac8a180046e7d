package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// MediaInfo is the container/stream metadata ffprobe reports for a file.
type MediaInfo struct {
	FilePath   string
	FormatName string
	Duration   float64
	Width      int
	Height     int
	FPS        float64
	VideoCodec string
	AudioCodec string
	HasAudio   bool
	BitRate    int64
}

type probeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// ProbeMedia runs ffprobe on a file. Returns ErrMediaUnreadable when the file
// cannot be decoded at all.
func ProbeMedia(ctx context.Context, path string) (*MediaInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed for %s: %v", ErrMediaUnreadable, path, err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: unparseable ffprobe output for %s", ErrMediaUnreadable, path)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no streams in %s", ErrMediaUnreadable, path)
	}

	info := &MediaInfo{FilePath: path, FormatName: probe.Format.FormatName}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = dur
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.BitRate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = strings.ToLower(stream.CodecName)
				info.Width = stream.Width
				info.Height = stream.Height
				info.FPS = parseFrameRate(stream.RFrameRate)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = strings.ToLower(stream.CodecName)
			}
			info.HasAudio = true
		}
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("%w: no video stream in %s", ErrMediaUnreadable, path)
	}
	return info, nil
}

// parseFrameRate converts ffprobe's "30000/1001" style rational.
func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(raw, 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
