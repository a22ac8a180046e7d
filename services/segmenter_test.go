package services

import (
	"math"
	"testing"
)

func TestPlanSegments_MidpointLength(t *testing.T) {
	// 12 seconds with bounds [3,5] plans 3 clips of 4 seconds.
	plans := PlanSegments(12, 3, 5, 0)
	if len(plans) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(plans))
	}
	for i, p := range plans {
		if p.Duration != 4 {
			t.Errorf("segment %d: expected duration 4, got %v", i, p.Duration)
		}
	}
}

func TestPlanSegments_RemainderEmitted(t *testing.T) {
	// 11 seconds with bounds [3,5]: two 4s segments plus a 3s remainder.
	plans := PlanSegments(11, 3, 5, 0)
	if len(plans) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(plans))
	}
	last := plans[len(plans)-1]
	if last.Duration != 3 {
		t.Errorf("expected remainder duration 3, got %v", last.Duration)
	}
}

func TestPlanSegments_RemainderDropped(t *testing.T) {
	// 10 seconds with bounds [3,5]: two 4s segments, 2s remainder dropped.
	plans := PlanSegments(10, 3, 5, 0)
	if len(plans) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(plans))
	}
}

func TestPlanSegments_TooShortSource(t *testing.T) {
	if plans := PlanSegments(2, 3, 5, 0); plans != nil {
		t.Errorf("expected no segments for a source shorter than min, got %d", len(plans))
	}
}

func TestPlanSegments_MaxClipsCap(t *testing.T) {
	plans := PlanSegments(100, 3, 5, 4)
	if len(plans) != 4 {
		t.Fatalf("expected clip cap of 4, got %d", len(plans))
	}
}

func TestPlanSegments_Invariants(t *testing.T) {
	durations := []float64{3, 3.5, 7.2, 12, 30.4, 61, 600}
	for _, total := range durations {
		plans := PlanSegments(total, 3, 10, 0)

		var sum float64
		prevEnd := 0.0
		for i, p := range plans {
			if p.Start < prevEnd-1e-9 {
				t.Errorf("total %v: segment %d overlaps previous", total, i)
			}
			if p.Duration < 3-1e-9 || p.Duration > 10+1e-9 {
				t.Errorf("total %v: segment %d duration %v outside [3,10]", total, i, p.Duration)
			}
			prevEnd = p.Start + p.Duration
			sum += p.Duration
		}
		if sum > total+1e-9 {
			t.Errorf("total %v: planned %v seconds, more than the source", total, sum)
		}
		if math.Abs(prevEnd-sum) > 1e-9 {
			t.Errorf("total %v: segments not contiguous from zero", total)
		}
	}
}

func TestPlanSegments_Deterministic(t *testing.T) {
	a := PlanSegments(47.3, 3, 10, 10)
	b := PlanSegments(47.3, 3, 10, 10)
	if len(a) != len(b) {
		t.Fatalf("plan lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("segment %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
