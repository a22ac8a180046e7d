package services

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatEvaluate(t *testing.T) {
	a := NewCompatAnalyzer()

	t.Run("Optimized MP4", func(t *testing.T) {
		result := a.Evaluate("mp4", "h264", "aac", true)
		assert.True(t, result.AutoplayCompatible)
		assert.True(t, result.WebOptimized)
	})

	t.Run("MP4 Without Faststart", func(t *testing.T) {
		result := a.Evaluate("mp4", "h264", "aac", false)
		assert.True(t, result.AutoplayCompatible)
		assert.False(t, result.WebOptimized)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("WebM VP9", func(t *testing.T) {
		result := a.Evaluate("webm", "vp9", "opus", true)
		assert.True(t, result.AutoplayCompatible)
		assert.True(t, result.WebOptimized)
	})

	t.Run("Bad Container", func(t *testing.T) {
		result := a.Evaluate("avi", "h264", "mp3", true)
		assert.False(t, result.AutoplayCompatible)
		assert.False(t, result.WebOptimized)
	})

	t.Run("Bad Codec", func(t *testing.T) {
		result := a.Evaluate("mp4", "mpeg2video", "aac", true)
		assert.False(t, result.AutoplayCompatible)
	})

	t.Run("Unknown Everything", func(t *testing.T) {
		// Total over garbage input: never panics, never compatible.
		result := a.Evaluate("", "", "", false)
		assert.False(t, result.AutoplayCompatible)
		result = a.Evaluate("xyz123", "codec9000", "???", true)
		assert.False(t, result.AutoplayCompatible)
	})
}

func TestNormalizeContainer(t *testing.T) {
	cases := map[string]string{
		"mov,mp4,m4a,3gp,3g2,mj2": "mp4",
		"matroska,webm":           "webm",
		"ogg":                     "ogv",
		"avi":                     "avi",
		"flv,other":               "flv",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizeContainer(input), "input %q", input)
	}
}

// writeBoxes builds a synthetic MP4 from top-level box types.
func writeBoxes(t *testing.T, path string, boxTypes ...string) {
	t.Helper()
	var data []byte
	for _, boxType := range boxTypes {
		header := make([]byte, 16)
		binary.BigEndian.PutUint32(header[:4], 16)
		copy(header[4:8], boxType)
		data = append(data, header...)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMP4FastStart(t *testing.T) {
	dir := t.TempDir()

	t.Run("Moov First", func(t *testing.T) {
		path := filepath.Join(dir, "fast.mp4")
		writeBoxes(t, path, "ftyp", "moov", "mdat")
		assert.True(t, mp4FastStart(path))
	})

	t.Run("Mdat First", func(t *testing.T) {
		path := filepath.Join(dir, "slow.mp4")
		writeBoxes(t, path, "ftyp", "mdat", "moov")
		assert.False(t, mp4FastStart(path))
	})

	t.Run("Truncated", func(t *testing.T) {
		path := filepath.Join(dir, "broken.mp4")
		if err := os.WriteFile(path, []byte{0x00, 0x01}, 0644); err != nil {
			t.Fatal(err)
		}
		assert.False(t, mp4FastStart(path))
	})

	t.Run("Missing File", func(t *testing.T) {
		assert.False(t, mp4FastStart(filepath.Join(dir, "nope.mp4")))
	})
}
