package detections

import (
	"fmt"
	"math"
	"sort"

	"github.com/faceserve/face-detection-service/models"
)

// PostProcessConfig carries the calibration thresholds applied to raw model
// output.
type PostProcessConfig struct {
	ConfidenceThreshold float32
	IoUThreshold        float32
}

type candidate struct {
	// Corner-form box in original-image pixel space.
	box  [4]float32
	conf float32
}

// PostProcess decodes raw per-anchor scores and regression deltas into final
// detections in original-image pixel coordinates, ordered by descending
// confidence. Zero survivors is a normal outcome, not an error.
func PostProcess(scores, boxes []float32, priors []Prior, origWidth, origHeight int, cfg PostProcessConfig) ([]models.Detection, error) {
	if len(scores) != len(priors)*2 {
		return nil, fmt.Errorf("%w: scores output holds %d values, want %d",
			ErrInference, len(scores), len(priors)*2)
	}
	if len(boxes) != len(priors)*4 {
		return nil, fmt.Errorf("%w: boxes output holds %d values, want %d",
			ErrInference, len(boxes), len(priors)*4)
	}

	w := float32(origWidth)
	h := float32(origHeight)

	candidates := make([]candidate, 0, 64)
	for i, prior := range priors {
		conf := faceProbability(scores[2*i], scores[2*i+1])
		if conf < cfg.ConfidenceThreshold {
			continue
		}

		box := decodeBox(boxes[4*i:4*i+4], prior)
		xMin := clampF(box[0]*w, 0, w)
		yMin := clampF(box[1]*h, 0, h)
		xMax := clampF(box[2]*w, 0, w)
		yMax := clampF(box[3]*h, 0, h)
		if xMin >= xMax || yMin >= yMax {
			continue
		}

		candidates = append(candidates, candidate{
			box:  [4]float32{xMin, yMin, xMax, yMax},
			conf: conf,
		})
	}

	selected := nonMaxSuppression(candidates, cfg.IoUThreshold)

	detections := make([]models.Detection, len(selected))
	for i, c := range selected {
		detections[i] = models.Detection{
			XMin:       c.box[0],
			YMin:       c.box[1],
			XMax:       c.box[2],
			YMax:       c.box[3],
			Confidence: c.conf,
		}
	}
	return detections, nil
}

// faceProbability applies softmax over the background/face logit pair.
func faceProbability(background, face float32) float32 {
	m := background
	if face > m {
		m = face
	}
	eb := math.Exp(float64(background - m))
	ef := math.Exp(float64(face - m))
	return float32(ef / (eb + ef))
}

// decodeBox applies regression deltas to a prior using the
// center-offset/log-scale formulation and returns normalized corner
// coordinates.
func decodeBox(delta []float32, p Prior) [4]float32 {
	cx := p.CX + delta[0]*CenterVariance*p.W
	cy := p.CY + delta[1]*CenterVariance*p.H
	bw := p.W * float32(math.Exp(float64(delta[2]*SizeVariance)))
	bh := p.H * float32(math.Exp(float64(delta[3]*SizeVariance)))
	return [4]float32{cx - bw/2, cy - bh/2, cx + bw/2, cy + bh/2}
}

// nonMaxSuppression greedily keeps the most confident box and drops later
// candidates overlapping a kept box beyond the IoU threshold. The stable sort
// preserves anchor order for equal confidences, keeping output deterministic.
func nonMaxSuppression(candidates []candidate, iouThreshold float32) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].conf > candidates[j].conf
	})

	selected := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		keep := true
		for _, sel := range selected {
			if iou(cand.box, sel.box) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, cand)
		}
	}
	return selected
}

// iou computes intersection-over-union for two corner-form boxes.
func iou(a, b [4]float32) float32 {
	x1 := maxF(a[0], b[0])
	y1 := maxF(a[1], b[1])
	x2 := minF(a[2], b[2])
	y2 := minF(a[3], b[3])

	var overlap float32
	if x2 > x1 && y2 > y1 {
		overlap = (x2 - x1) * (y2 - y1)
	}

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	return overlap / (areaA + areaB - overlap + EPS)
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
