package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeSolidJPEG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestColorAnalyzer_SolidFrame(t *testing.T) {
	a := NewColorAnalyzer()
	frames := []FrameSample{
		{JPEG: encodeSolidJPEG(t, color.RGBA{R: 200, G: 30, B: 30, A: 255}, 64, 64)},
	}

	palette := a.Analyze(frames)
	if len(palette) == 0 {
		t.Fatal("expected at least one dominant color")
	}
	if palette[0].Name != "red" {
		t.Errorf("expected red, got %q (%s)", palette[0].Name, palette[0].Hex)
	}
	if palette[0].Percentage < 50 {
		t.Errorf("a solid frame should be dominated by one color, got %v%%", palette[0].Percentage)
	}
}

func TestColorAnalyzer_TwoFrames(t *testing.T) {
	a := NewColorAnalyzer()
	frames := []FrameSample{
		{JPEG: encodeSolidJPEG(t, color.RGBA{R: 40, G: 60, B: 200, A: 255}, 64, 64)},
		{JPEG: encodeSolidJPEG(t, color.RGBA{R: 40, G: 60, B: 200, A: 255}, 64, 64)},
	}

	palette := a.Analyze(frames)
	if len(palette) == 0 {
		t.Fatal("expected a palette")
	}
	if palette[0].Name != "blue" {
		t.Errorf("expected blue, got %q", palette[0].Name)
	}

	total := 0.0
	for _, entry := range palette {
		total += entry.Percentage
	}
	if total > 100.5 {
		t.Errorf("percentages exceed 100: %v", total)
	}
}

func TestColorAnalyzer_EmptyInput(t *testing.T) {
	a := NewColorAnalyzer()
	if palette := a.Analyze(nil); palette != nil {
		t.Errorf("expected nil palette for no frames, got %v", palette)
	}
	// Undecodable bytes are skipped, not fatal.
	if palette := a.Analyze([]FrameSample{{JPEG: []byte("not a jpeg")}}); palette != nil {
		t.Errorf("expected nil palette for broken frames, got %v", palette)
	}
}

func TestColorName(t *testing.T) {
	cases := []struct {
		c    rgb
		want string
	}{
		{rgb{10, 10, 10}, "black"},
		{rgb{250, 250, 250}, "white"},
		{rgb{128, 128, 128}, "gray"},
		{rgb{220, 30, 30}, "red"},
		{rgb{240, 130, 20}, "orange"},
		{rgb{240, 230, 30}, "yellow"},
		{rgb{30, 200, 40}, "green"},
		{rgb{30, 200, 210}, "cyan"},
		{rgb{30, 60, 220}, "blue"},
		{rgb{150, 40, 220}, "purple"},
		{rgb{230, 50, 160}, "pink"},
	}
	for _, c := range cases {
		if got := colorName(c.c); got != c.want {
			t.Errorf("%+v: expected %q, got %q", c.c, c.want, got)
		}
	}
}

func TestColorAnalyzer_Deterministic(t *testing.T) {
	a := NewColorAnalyzer()
	frames := []FrameSample{
		{JPEG: encodeSolidJPEG(t, color.RGBA{R: 90, G: 180, B: 60, A: 255}, 48, 48)},
	}

	first := a.Analyze(frames)
	second := a.Analyze(frames)
	if len(first) != len(second) {
		t.Fatalf("palette sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
