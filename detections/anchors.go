package detections

import "math"

// Prior is one reference box of the detector's output grid, stored as
// center/size in the normalized [0,1] coordinate space.
type Prior struct {
	CX float32
	CY float32
	W  float32
	H  float32
}

// The four output strides and their box sizes in input pixels, per the
// model's training recipe.
var (
	priorStrides  = [4]int{8, 16, 32, 64}
	priorMinSizes = [4][]float32{
		{10, 16, 24},
		{32, 48},
		{64, 96},
		{128, 192, 256},
	}
)

// GeneratePriors builds the anchor grid matching the model's output layout:
// for each stride, one cell per feature-map position with one prior per
// configured box size. The result is generated once at startup and shared
// read-only across all requests.
func GeneratePriors() []Prior {
	priors := make([]Prior, 0, NumAnchors)
	for s, stride := range priorStrides {
		fmWidth := int(math.Ceil(float64(InputWidth) / float64(stride)))
		fmHeight := int(math.Ceil(float64(InputHeight) / float64(stride)))
		for y := 0; y < fmHeight; y++ {
			cy := (float32(y) + 0.5) / float32(fmHeight)
			for x := 0; x < fmWidth; x++ {
				cx := (float32(x) + 0.5) / float32(fmWidth)
				for _, size := range priorMinSizes[s] {
					priors = append(priors, Prior{
						CX: clamp01(cx),
						CY: clamp01(cy),
						W:  clamp01(size / InputWidth),
						H:  clamp01(size / InputHeight),
					})
				}
			}
		}
	}
	return priors
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
