package detections

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"
)

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestProcessRejectsWrongBufferSize(t *testing.T) {
	p := NewPreprocessor()
	err := p.Process(solidNRGBA(10, 10, color.NRGBA{A: 255}), make([]float32, 7))
	if !errors.Is(err, ErrPreprocess) {
		t.Fatalf("want ErrPreprocess, got %v", err)
	}
}

func TestProcessNormalizesSolidColor(t *testing.T) {
	p := NewPreprocessor()
	// Arbitrary original size; the preprocessor stretch-resizes to the model
	// resolution.
	img := solidNRGBA(320, 200, color.NRGBA{R: 128, G: 64, B: 32, A: 255})

	dst := make([]float32, InputWidth*InputHeight*NumChannels)
	if err := p.Process(img, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const channelSize = InputWidth * InputHeight
	want := [3]float32{
		(128.0/255.0 - NormMean[0]) / NormStd[0],
		(64.0/255.0 - NormMean[1]) / NormStd[1],
		(32.0/255.0 - NormMean[2]) / NormStd[2],
	}

	for c := 0; c < 3; c++ {
		for _, i := range []int{0, channelSize / 2, channelSize - 1} {
			got := dst[c*channelSize+i]
			if math.Abs(float64(got-want[c])) > 1e-2 {
				t.Fatalf("channel %d index %d: got %g, want %g", c, i, got, want[c])
			}
		}
	}
}

func TestRowAndGenericPathsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	img := image.NewNRGBA(image.Rect(0, 0, InputWidth, InputHeight))
	for y := 0; y < InputHeight; y++ {
		for x := 0; x < InputWidth; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	p := NewPreprocessor()
	fast := make([]float32, InputWidth*InputHeight*NumChannels)
	generic := make([]float32, InputWidth*InputHeight*NumChannels)

	p.processRows(img, fast)
	p.processGeneric(img, generic)

	for i := range fast {
		if fast[i] != generic[i] {
			t.Fatalf("paths diverge at %d: %g vs %g", i, fast[i], generic[i])
		}
	}
}

func TestProcessOutputWithinNormalizedRange(t *testing.T) {
	p := NewPreprocessor()
	img := solidNRGBA(64, 48, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	dst := make([]float32, InputWidth*InputHeight*NumChannels)
	if err := p.Process(img, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ImageNet normalization maps [0,255] into roughly [-2.2, 2.7].
	for i, v := range dst {
		if v < -3 || v > 3 {
			t.Fatalf("value %g at %d outside expected normalized range", v, i)
		}
	}
}
