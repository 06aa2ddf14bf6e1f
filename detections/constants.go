package detections

// Model contract for the Ultraface-style face detector. The network takes a
// single 1x3x480x640 NCHW tensor normalized with ImageNet statistics and
// emits per-anchor class logits plus box regression deltas against the prior
// grid. These values come from the model's published training recipe and
// change only with the model artifact, so they are constants rather than
// configuration.
const (
	InputWidth  = 640
	InputHeight = 480
	NumChannels = 3

	// NumAnchors is the size of the prior grid over all four output strides.
	NumAnchors = 17640

	// Decode variances for the center-offset/log-scale box regression.
	CenterVariance = 0.1
	SizeVariance   = 0.2

	// EPS keeps the IoU denominator away from zero for degenerate boxes.
	EPS = 1.0e-7
)

// Per-channel normalization in RGB order.
var (
	NormMean = [NumChannels]float32{0.485, 0.456, 0.406}
	NormStd  = [NumChannels]float32{0.229, 0.224, 0.225}
)
