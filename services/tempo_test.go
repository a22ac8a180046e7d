package services

import (
	"testing"
)

// clickTrack synthesizes percussive bursts every periodSamples samples.
func clickTrack(totalSamples, periodSamples, burstLen int) []float64 {
	samples := make([]float64, totalSamples)
	for start := 0; start < totalSamples; start += periodSamples {
		for i := 0; i < burstLen && start+i < totalSamples; i++ {
			if i%2 == 0 {
				samples[start+i] = 0.9
			} else {
				samples[start+i] = -0.9
			}
		}
	}
	return samples
}

func TestTempoAnalyzer_ClickTrack(t *testing.T) {
	a := NewTempoAnalyzer()

	// Clicks every 22 hop frames: 60 * 22050 / 11264 ~ 117.4 BPM.
	period := 22 * tempoHopSize
	samples := clickTrack(10*audioSampleRate, period, 256)

	result := a.Analyze(samples, audioSampleRate)
	if result.BPM == nil {
		t.Fatal("expected a BPM for a regular click track")
	}
	if *result.BPM < 100 || *result.BPM > 140 {
		t.Errorf("expected BPM near 117, got %v", *result.BPM)
	}
	if result.TempoCategory == nil {
		t.Fatal("expected a tempo category")
	}
	if result.NumBeats < 5 {
		t.Errorf("expected at least 5 beats, got %d", result.NumBeats)
	}
	if result.Stability < 0.5 {
		t.Errorf("regular clicks should be stable, got %v", result.Stability)
	}
	if !result.HasRhythm {
		t.Error("regular clicks should register as rhythmic")
	}
	if result.EnergyLevel < 0 || result.EnergyLevel > 100 {
		t.Errorf("energy out of range: %v", result.EnergyLevel)
	}
}

func TestTempoAnalyzer_ShortAudio(t *testing.T) {
	a := NewTempoAnalyzer()

	// One second is below the minimum; result must be null, not a guess.
	samples := clickTrack(audioSampleRate, 8000, 256)
	result := a.Analyze(samples, audioSampleRate)
	if result.BPM != nil {
		t.Errorf("expected nil BPM for short audio, got %v", *result.BPM)
	}
	if result.TempoCategory != nil {
		t.Errorf("expected nil category for short audio, got %q", *result.TempoCategory)
	}
}

func TestTempoAnalyzer_NoAudio(t *testing.T) {
	a := NewTempoAnalyzer()
	result := a.Analyze(nil, audioSampleRate)
	if result.BPM != nil || result.TempoCategory != nil {
		t.Error("expected null result for absent audio")
	}
}

func TestTempoAnalyzer_Silence(t *testing.T) {
	a := NewTempoAnalyzer()
	result := a.Analyze(make([]float64, 5*audioSampleRate), audioSampleRate)
	if result.BPM != nil {
		t.Error("silence has no beat")
	}
	if result.EnergyLevel != 0 {
		t.Errorf("silence has zero energy, got %v", result.EnergyLevel)
	}
}

func TestTempoAnalyzer_Deterministic(t *testing.T) {
	a := NewTempoAnalyzer()
	samples := clickTrack(6*audioSampleRate, 20*tempoHopSize, 128)

	first := a.Analyze(samples, audioSampleRate)
	second := a.Analyze(samples, audioSampleRate)
	if (first.BPM == nil) != (second.BPM == nil) {
		t.Fatal("BPM presence differs between runs")
	}
	if first.BPM != nil && *first.BPM != *second.BPM {
		t.Errorf("BPM differs between runs: %v vs %v", *first.BPM, *second.BPM)
	}
	if first.NumBeats != second.NumBeats {
		t.Errorf("beat counts differ: %d vs %d", first.NumBeats, second.NumBeats)
	}
}

func TestCategorizeTempo_Boundaries(t *testing.T) {
	cases := []struct {
		bpm  float64
		want string
	}{
		{45, "very_slow"},
		{59.9, "very_slow"},
		{60, "slow"},
		{89.9, "slow"},
		{90, "moderate"},
		{119.9, "moderate"},
		{120, "fast"},
		{149.9, "fast"},
		{150, "very_fast"},
		{200, "very_fast"},
	}
	for _, c := range cases {
		if got := categorizeTempo(c.bpm); got != c.want {
			t.Errorf("bpm %v: expected %q, got %q", c.bpm, c.want, got)
		}
	}
}
