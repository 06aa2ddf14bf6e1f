package detections

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sys/cpu"
)

// The row fast path walks raw NRGBA pixel rows; on CPUs with wide vector
// units the compiler keeps the per-row loop in registers. Older CPUs fall
// back to the generic At() walk.
var useRowFastPath = cpu.X86.HasAVX2 || cpu.X86.HasSSE41

// Preprocessor converts decoded images into the model's input layout:
// stretch-resize to InputWidth x InputHeight, ImageNet normalization, planar
// channel-first float32. Safe for concurrent use; all state is per call.
type Preprocessor struct {
	numWorkers int
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{numWorkers: runtime.GOMAXPROCS(0)}
}

// Process resizes img to the model resolution and writes the normalized
// NCHW-planar result into dst, which must hold exactly
// InputWidth*InputHeight*NumChannels values.
func (p *Preprocessor) Process(img image.Image, dst []float32) error {
	want := InputWidth * InputHeight * NumChannels
	if len(dst) != want {
		return fmt.Errorf("%w: input buffer holds %d values, want %d",
			ErrPreprocess, len(dst), want)
	}

	resized := imaging.Resize(img, InputWidth, InputHeight, imaging.Linear)
	if b := resized.Bounds(); b.Dx() != InputWidth || b.Dy() != InputHeight {
		return fmt.Errorf("%w: resize produced %dx%d, want %dx%d",
			ErrPreprocess, b.Dx(), b.Dy(), InputWidth, InputHeight)
	}

	if useRowFastPath {
		p.processRows(resized, dst)
	} else {
		p.processGeneric(resized, dst)
	}
	return nil
}

// processRows normalizes straight from the NRGBA pixel rows, split across
// workers by row range.
func (p *Preprocessor) processRows(img *image.NRGBA, dst []float32) {
	const channelSize = InputWidth * InputHeight

	workers := p.numWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > InputHeight {
		workers = InputHeight
	}
	rowsPerWorker := InputHeight / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if w == workers-1 {
			endY = InputHeight
		}

		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				row := img.Pix[y*img.Stride:]
				offset := y * InputWidth
				for x := 0; x < InputWidth; x++ {
					i := offset + x
					px := row[x*4 : x*4+3 : x*4+3]
					dst[i] = (float32(px[0])/255.0 - NormMean[0]) / NormStd[0]
					dst[channelSize+i] = (float32(px[1])/255.0 - NormMean[1]) / NormStd[1]
					dst[channelSize*2+i] = (float32(px[2])/255.0 - NormMean[2]) / NormStd[2]
				}
			}
		}(startY, endY)
	}
	wg.Wait()
}

func (p *Preprocessor) processGeneric(img image.Image, dst []float32) {
	const channelSize = InputWidth * InputHeight
	for y := 0; y < InputHeight; y++ {
		offset := y * InputWidth
		for x := 0; x < InputWidth; x++ {
			i := offset + x
			r, g, b, _ := img.At(x, y).RGBA()
			dst[i] = (float32(r>>8)/255.0 - NormMean[0]) / NormStd[0]
			dst[channelSize+i] = (float32(g>>8)/255.0 - NormMean[1]) / NormStd[1]
			dst[channelSize*2+i] = (float32(b>>8)/255.0 - NormMean[2]) / NormStd[2]
		}
	}
}
