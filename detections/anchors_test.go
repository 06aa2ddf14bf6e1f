package detections

import (
	"math"
	"testing"
)

func TestGeneratePriorsCount(t *testing.T) {
	priors := GeneratePriors()
	if len(priors) != NumAnchors {
		t.Fatalf("got %d priors, want %d", len(priors), NumAnchors)
	}
}

func TestGeneratePriorsWithinUnitSquare(t *testing.T) {
	for i, p := range GeneratePriors() {
		for name, v := range map[string]float32{"cx": p.CX, "cy": p.CY, "w": p.W, "h": p.H} {
			if v < 0 || v > 1 {
				t.Fatalf("prior %d: %s = %g out of [0,1]", i, name, v)
			}
		}
	}
}

func TestGeneratePriorsFirstCell(t *testing.T) {
	priors := GeneratePriors()

	// Stride 8 grid is 80x60; the first cell centers at half a cell and its
	// first box size is 10 input pixels.
	want := Prior{
		CX: 0.5 / 80,
		CY: 0.5 / 60,
		W:  10.0 / InputWidth,
		H:  10.0 / InputHeight,
	}
	got := priors[0]

	const tol = 1e-6
	if math.Abs(float64(got.CX-want.CX)) > tol ||
		math.Abs(float64(got.CY-want.CY)) > tol ||
		math.Abs(float64(got.W-want.W)) > tol ||
		math.Abs(float64(got.H-want.H)) > tol {
		t.Fatalf("first prior = %+v, want %+v", got, want)
	}
}

func TestGeneratePriorsPerStrideCounts(t *testing.T) {
	// 80x60x3 + 40x30x2 + 20x15x2 + 10x8x3
	wantCounts := []int{14400, 2400, 600, 240}
	total := 0
	for _, c := range wantCounts {
		total += c
	}
	if total != NumAnchors {
		t.Fatalf("stride counts sum to %d, want %d", total, NumAnchors)
	}

	priors := GeneratePriors()
	// The stride-8 block ends where box width jumps from 24/640 to 32/640.
	idx := 0
	for _, want := range wantCounts {
		idx += want
		if idx < len(priors) && priors[idx-1].W >= priors[idx].W {
			t.Fatalf("expected stride boundary after %d priors, widths %g -> %g",
				idx, priors[idx-1].W, priors[idx].W)
		}
	}
}
