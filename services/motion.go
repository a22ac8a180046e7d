package services

import (
	"math"
)

// Block-matching parameters for the optical flow estimate. A 16px block with a
// 6px search radius catches the motion range that matters at 320x240.
const (
	flowBlockSize    = 16
	flowSearchRadius = 6

	// Blocks displaced by less than this are considered still.
	movingBlockThreshold = 0.5
)

// MotionThresholds are the classification boundaries on mean flow magnitude.
// They must be strictly increasing; DefaultMotionThresholds matches the
// calibrated defaults.
type MotionThresholds struct {
	Slow     float64 // below: static
	Moderate float64
	Fast     float64
	Intense  float64
}

var DefaultMotionThresholds = MotionThresholds{
	Slow:     0.5,
	Moderate: 2.0,
	Fast:     5.0,
	Intense:  10.0,
}

// Valid reports whether the boundaries are monotonic.
func (t MotionThresholds) Valid() bool {
	return t.Slow < t.Moderate && t.Moderate < t.Fast && t.Fast < t.Intense
}

// MotionResult is the aggregate motion analysis for one clip.
type MotionResult struct {
	Level         string  `json:"motion_level"` // static|slow|moderate|fast|intense
	Score         float64 `json:"motion_score"` // [0,100]
	FlowMagnitude float64 `json:"optical_flow_magnitude"`
	MaxMagnitude  float64 `json:"max_motion_magnitude"`
	MovingAreaPct float64 `json:"motion_areas_percentage"`
	CameraMotion  bool    `json:"camera_motion"`
	ObjectMotion  bool    `json:"object_motion"`
}

// MotionAnalyzer classifies clip motion from a decoded grayscale frame
// sequence. Stateless and deterministic: the same frames always produce the
// same result.
type MotionAnalyzer struct {
	Thresholds MotionThresholds
}

func NewMotionAnalyzer() *MotionAnalyzer {
	return &MotionAnalyzer{Thresholds: DefaultMotionThresholds}
}

// Analyze estimates block-wise optical flow between consecutive frames and
// aggregates displacement magnitude into a score and class.
func (a *MotionAnalyzer) Analyze(frames []GrayFrame) MotionResult {
	static := MotionResult{Level: "static"}
	if len(frames) < 2 {
		return static
	}

	thresholds := a.Thresholds
	if !thresholds.Valid() {
		thresholds = DefaultMotionThresholds
	}

	var (
		magnitudes   []float64
		movingAreas  []float64
		dominances   []float64
		maxMagnitude float64
	)

	for i := 1; i < len(frames); i++ {
		prev, curr := frames[i-1], frames[i]
		if len(prev.Pix) != prev.Width*prev.Height || len(curr.Pix) != len(prev.Pix) {
			continue
		}

		pairMag, movingPct, dominance := blockFlow(prev, curr)
		magnitudes = append(magnitudes, pairMag)
		movingAreas = append(movingAreas, movingPct)
		dominances = append(dominances, dominance)
		if pairMag > maxMagnitude {
			maxMagnitude = pairMag
		}
	}

	if len(magnitudes) == 0 {
		return static
	}

	avgMagnitude := mean(magnitudes)
	avgMovingArea := mean(movingAreas)
	avgDominance := mean(dominances)

	score := math.Min(100, avgMagnitude*10)

	// Camera motion moves most of the frame in one direction; subject motion
	// moves a confined region against a still background.
	cameraMotion := avgMovingArea > 60 && avgDominance > 0.5
	objectMotion := avgMovingArea < 40 && avgMagnitude > 1.0

	return MotionResult{
		Level:         classifyMotion(avgMagnitude, thresholds),
		Score:         round2(score),
		FlowMagnitude: round3(avgMagnitude),
		MaxMagnitude:  round3(maxMagnitude),
		MovingAreaPct: round2(avgMovingArea),
		CameraMotion:  cameraMotion,
		ObjectMotion:  objectMotion,
	}
}

func classifyMotion(magnitude float64, t MotionThresholds) string {
	switch {
	case magnitude < t.Slow:
		return "static"
	case magnitude < t.Moderate:
		return "slow"
	case magnitude < t.Fast:
		return "moderate"
	case magnitude < t.Intense:
		return "fast"
	default:
		return "intense"
	}
}

// blockFlow matches each block of prev against a search window in curr and
// returns (mean displacement magnitude, moving-block percentage, share of the
// dominant flow direction among moving blocks).
func blockFlow(prev, curr GrayFrame) (meanMag, movingPct, dominance float64) {
	w, h := prev.Width, prev.Height

	var (
		blocks       int
		movingBlocks int
		magSum       float64
		directionBin [8]int
	)

	for by := 0; by+flowBlockSize <= h; by += flowBlockSize {
		for bx := 0; bx+flowBlockSize <= w; bx += flowBlockSize {
			dx, dy := matchBlock(prev, curr, bx, by)
			mag := math.Hypot(float64(dx), float64(dy))

			blocks++
			magSum += mag
			if mag > movingBlockThreshold {
				movingBlocks++
				angle := math.Atan2(float64(dy), float64(dx))
				bin := int((angle + math.Pi) / (2 * math.Pi) * 8)
				if bin > 7 {
					bin = 7
				}
				directionBin[bin]++
			}
		}
	}

	if blocks == 0 {
		return 0, 0, 0
	}

	meanMag = magSum / float64(blocks)
	movingPct = float64(movingBlocks) / float64(blocks) * 100

	if movingBlocks > 0 {
		top := 0
		for _, n := range directionBin {
			if n > top {
				top = n
			}
		}
		dominance = float64(top) / float64(movingBlocks)
	}
	return meanMag, movingPct, dominance
}

// matchBlock finds the displacement in [-radius,radius]^2 minimizing the sum
// of absolute differences. Exhaustive search, ties resolved toward the
// smaller displacement so results are stable.
func matchBlock(prev, curr GrayFrame, bx, by int) (int, int) {
	bestDx, bestDy := 0, 0
	bestCost := blockSAD(prev, curr, bx, by, 0, 0)
	bestDist := 0

	for dy := -flowSearchRadius; dy <= flowSearchRadius; dy++ {
		for dx := -flowSearchRadius; dx <= flowSearchRadius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := bx+dx, by+dy
			if nx < 0 || ny < 0 || nx+flowBlockSize > curr.Width || ny+flowBlockSize > curr.Height {
				continue
			}
			cost := blockSAD(prev, curr, bx, by, dx, dy)
			dist := dx*dx + dy*dy
			if cost < bestCost || (cost == bestCost && dist < bestDist) {
				bestCost = cost
				bestDx, bestDy = dx, dy
				bestDist = dist
			}
		}
	}
	return bestDx, bestDy
}

func blockSAD(prev, curr GrayFrame, bx, by, dx, dy int) int {
	sad := 0
	for y := 0; y < flowBlockSize; y++ {
		prevRow := (by + y) * prev.Width
		currRow := (by + y + dy) * curr.Width
		for x := 0; x < flowBlockSize; x++ {
			p := int(prev.Pix[prevRow+bx+x])
			c := int(curr.Pix[currRow+bx+x+dx])
			if p > c {
				sad += p - c
			} else {
				sad += c - p
			}
		}
	}
	return sad
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
