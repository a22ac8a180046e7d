package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"sort"
)

const (
	colorClusterCount = 5
	colorSampleStride = 4
	colorKMeansRounds = 10
)

// DominantColor is one palette entry extracted from a clip's key frames.
type DominantColor struct {
	Hex        string  `json:"hex"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// ColorAnalyzer extracts a dominant color palette from sampled frames using
// k-means over downsampled RGB pixels. Deterministic: centers are seeded from
// the sorted pixel distribution, not at random.
type ColorAnalyzer struct{}

func NewColorAnalyzer() *ColorAnalyzer {
	return &ColorAnalyzer{}
}

type rgb struct {
	r, g, b float64
}

// Analyze pools the pixels of all frames and returns up to five dominant
// colors ordered by coverage. Frames that fail to decode are skipped.
func (a *ColorAnalyzer) Analyze(frames []FrameSample) []DominantColor {
	var pixels []rgb
	for _, frame := range frames {
		if len(frame.JPEG) == 0 {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(frame.JPEG))
		if err != nil {
			continue
		}
		pixels = append(pixels, samplePixels(img)...)
	}
	if len(pixels) == 0 {
		return nil
	}

	centers, counts := kmeans(pixels, colorClusterCount)

	total := 0
	for _, c := range counts {
		total += c
	}

	var palette []DominantColor
	for i, center := range centers {
		if counts[i] == 0 {
			continue
		}
		pct := float64(counts[i]) / float64(total) * 100
		if pct < 1 {
			continue
		}
		palette = append(palette, DominantColor{
			Hex:        fmt.Sprintf("#%02x%02x%02x", clampByte(center.r), clampByte(center.g), clampByte(center.b)),
			Name:       colorName(center),
			Percentage: round2(pct),
		})
	}
	sort.Slice(palette, func(i, j int) bool {
		return palette[i].Percentage > palette[j].Percentage
	})
	return palette
}

func samplePixels(img image.Image) []rgb {
	bounds := img.Bounds()
	var out []rgb
	for y := bounds.Min.Y; y < bounds.Max.Y; y += colorSampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += colorSampleStride {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, rgb{float64(r >> 8), float64(g >> 8), float64(b >> 8)})
		}
	}
	return out
}

// kmeans clusters pixels into k centers. Seeding picks pixels at even ranks
// of the luminance-sorted distribution so repeated runs agree.
func kmeans(pixels []rgb, k int) ([]rgb, []int) {
	if len(pixels) < k {
		k = len(pixels)
	}

	sorted := make([]rgb, len(pixels))
	copy(sorted, pixels)
	sort.Slice(sorted, func(i, j int) bool {
		return luminance(sorted[i]) < luminance(sorted[j])
	})

	centers := make([]rgb, k)
	for i := 0; i < k; i++ {
		centers[i] = sorted[(2*i+1)*len(sorted)/(2*k)]
	}

	assignments := make([]int, len(pixels))
	counts := make([]int, k)
	for round := 0; round < colorKMeansRounds; round++ {
		changed := false
		for i, p := range pixels {
			best, bestDist := 0, math.MaxFloat64
			for c, center := range centers {
				d := colorDist(p, center)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([]rgb, k)
		counts = make([]int, k)
		for i, p := range pixels {
			c := assignments[i]
			sums[c].r += p.r
			sums[c].g += p.g
			sums[c].b += p.b
			counts[c]++
		}
		for c := range centers {
			if counts[c] > 0 {
				centers[c] = rgb{
					sums[c].r / float64(counts[c]),
					sums[c].g / float64(counts[c]),
					sums[c].b / float64(counts[c]),
				}
			}
		}
		if !changed {
			break
		}
	}
	return centers, counts
}

func colorDist(a, b rgb) float64 {
	dr, dg, db := a.r-b.r, a.g-b.g, a.b-b.b
	return dr*dr + dg*dg + db*db
}

func luminance(c rgb) float64 {
	return 0.299*c.r + 0.587*c.g + 0.114*c.b
}

func clampByte(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int(v + 0.5)
}

// colorName maps an RGB center to a human color label via HSV.
func colorName(c rgb) string {
	h, s, v := rgbToHSV(c)

	switch {
	case v < 0.15:
		return "black"
	case s < 0.12 && v > 0.85:
		return "white"
	case s < 0.12:
		return "gray"
	}

	switch {
	case h < 15 || h >= 345:
		return "red"
	case h < 45:
		return "orange"
	case h < 70:
		return "yellow"
	case h < 160:
		return "green"
	case h < 200:
		return "cyan"
	case h < 260:
		return "blue"
	case h < 300:
		return "purple"
	default:
		return "pink"
	}
}

func rgbToHSV(c rgb) (h, s, v float64) {
	r, g, b := c.r/255, c.g/255, c.b/255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	delta := max - min

	if max > 0 {
		s = delta / max
	}
	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
