package services

import (
	"math"
	"math/cmplx"
)

// Tempo estimation below 2 seconds of audio is noise; such clips get a null
// result instead of a guess.
const (
	MinTempoSeconds = 2.0

	tempoFrameSize = 1024
	tempoHopSize   = 512

	minBPM = 40.0
	maxBPM = 220.0

	// Normalized autocorrelation peaks below this mean no periodic beat.
	minBeatCorrelation = 0.05
)

// TempoResult is the audio analysis for one clip. BPM and TempoCategory are
// nil when the clip has no audio or no detectable beat.
type TempoResult struct {
	BPM              *float64  `json:"bpm"`
	TempoCategory    *string   `json:"tempo_category"` // very_slow|slow|moderate|fast|very_fast
	Confidence       float64   `json:"tempo_confidence"`
	BeatTimes        []float64 `json:"beat_times"`
	NumBeats         int       `json:"num_beats"`
	HasRhythm        bool      `json:"has_rhythm"`
	EnergyLevel      float64   `json:"energy_level"` // [0,100]
	SpectralCentroid float64   `json:"spectral_centroid"`
	Stability        float64   `json:"tempo_stability"` // [0,1]
}

// TempoAnalyzer estimates BPM and related audio features from mono PCM.
// Stateless and never errors; insufficient signal degrades to a null result.
type TempoAnalyzer struct{}

func NewTempoAnalyzer() *TempoAnalyzer {
	return &TempoAnalyzer{}
}

// Analyze runs the full tempo estimation over normalized [-1,1] samples.
func (a *TempoAnalyzer) Analyze(samples []float64, sampleRate int) TempoResult {
	if sampleRate <= 0 || float64(len(samples))/float64(sampleRate) < MinTempoSeconds {
		return TempoResult{}
	}

	envelope, frameEnergies := onsetEnvelope(samples)
	if len(envelope) < 4 {
		return TempoResult{}
	}

	framesPerSecond := float64(sampleRate) / float64(tempoHopSize)

	result := TempoResult{
		EnergyLevel:      math.Min(100, mean(frameEnergies)*100),
		SpectralCentroid: round2(spectralCentroid(samples, sampleRate)),
	}

	bpm, strength := estimateBPM(envelope, framesPerSecond)
	if strength < minBeatCorrelation {
		// Audible but arrhythmic (speech, ambience). Energy still counts.
		result.EnergyLevel = round2(result.EnergyLevel)
		return result
	}

	beats := pickBeats(envelope, framesPerSecond, bpm)
	if len(beats) < 2 {
		result.EnergyLevel = round2(result.EnergyLevel)
		return result
	}

	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i] - beats[i-1]
	}
	meanInterval := mean(intervals)
	stability := 0.0
	if meanInterval > 0 {
		stability = 1.0 - stddev(intervals)/meanInterval
	}
	stability = math.Max(0, math.Min(1, stability))

	bpmRounded := round2(bpm)
	category := categorizeTempo(bpm)

	if len(beats) > 100 {
		beats = beats[:100]
	}

	result.BPM = &bpmRounded
	result.TempoCategory = &category
	result.Confidence = round3(math.Min(1.0, float64(len(beats))/100.0))
	result.BeatTimes = beats
	result.NumBeats = len(beats)
	result.HasRhythm = len(beats) > 4 && stability > 0.3
	result.EnergyLevel = round2(result.EnergyLevel)
	result.Stability = round3(stability)
	return result
}

func categorizeTempo(bpm float64) string {
	switch {
	case bpm < 60:
		return "very_slow"
	case bpm < 90:
		return "slow"
	case bpm < 120:
		return "moderate"
	case bpm < 150:
		return "fast"
	default:
		return "very_fast"
	}
}

// onsetEnvelope computes per-frame RMS energy and its positive flux.
func onsetEnvelope(samples []float64) (envelope, energies []float64) {
	for off := 0; off+tempoFrameSize <= len(samples); off += tempoHopSize {
		sum := 0.0
		for _, s := range samples[off : off+tempoFrameSize] {
			sum += s * s
		}
		energies = append(energies, math.Sqrt(sum/float64(tempoFrameSize)))
	}

	envelope = make([]float64, len(energies))
	for i := 1; i < len(energies); i++ {
		flux := energies[i] - energies[i-1]
		if flux > 0 {
			envelope[i] = flux
		}
	}
	return envelope, energies
}

// estimateBPM finds the lag maximizing the normalized autocorrelation of the
// onset envelope within the plausible BPM range.
func estimateBPM(envelope []float64, framesPerSecond float64) (bpm, strength float64) {
	n := len(envelope)

	m := mean(envelope)
	centered := make([]float64, n)
	var variance float64
	for i, v := range envelope {
		centered[i] = v - m
		variance += centered[i] * centered[i]
	}
	if variance == 0 {
		return 0, 0
	}

	minLag := int(60.0 / maxBPM * framesPerSecond)
	maxLag := int(60.0 / minBPM * framesPerSecond)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := lag; i < n; i++ {
			corr += centered[i] * centered[i-lag]
		}
		corr /= variance
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0, 0
	}
	return 60.0 * framesPerSecond / float64(bestLag), bestCorr
}

// pickBeats selects onset peaks at least half a beat period apart.
func pickBeats(envelope []float64, framesPerSecond, bpm float64) []float64 {
	if bpm <= 0 {
		return nil
	}

	m := mean(envelope)
	sd := stddev(envelope)
	threshold := m + sd/2

	minSpacing := int(60.0 / bpm * framesPerSecond / 2)
	if minSpacing < 1 {
		minSpacing = 1
	}

	var beats []float64
	lastPeak := -minSpacing
	for i := 1; i < len(envelope)-1; i++ {
		if envelope[i] < threshold {
			continue
		}
		if envelope[i] < envelope[i-1] || envelope[i] < envelope[i+1] {
			continue
		}
		if i-lastPeak < minSpacing {
			continue
		}
		beats = append(beats, float64(i)/framesPerSecond)
		lastPeak = i
	}
	return beats
}

// spectralCentroid averages the magnitude-weighted mean frequency over FFT
// frames. A brightness proxy, not a tempo input.
func spectralCentroid(samples []float64, sampleRate int) float64 {
	var centroids []float64

	for off := 0; off+tempoFrameSize <= len(samples); off += tempoFrameSize {
		frame := make([]complex128, tempoFrameSize)
		for i, s := range samples[off : off+tempoFrameSize] {
			// Hann window
			w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(tempoFrameSize-1)))
			frame[i] = complex(s*w, 0)
		}
		fft(frame)

		var weighted, total float64
		for k := 0; k < tempoFrameSize/2; k++ {
			mag := cmplx.Abs(frame[k])
			freq := float64(k) * float64(sampleRate) / float64(tempoFrameSize)
			weighted += freq * mag
			total += mag
		}
		if total > 0 {
			centroids = append(centroids, weighted/total)
		}
	}
	return mean(centroids)
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform.
// len(x) must be a power of two.
func fft(x []complex128) {
	n := len(x)

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := x[i+j]
				v := x[i+j+length/2] * w
				x[i+j] = u + v
				x[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}
