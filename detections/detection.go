package detections

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/faceserve/face-detection-service/models"
)

// Pipeline runs the full detection flow for one request. The prior set and
// thresholds are built once at startup and shared read-only; per-request
// buffers are owned by the calling goroutine.
type Pipeline struct {
	priors       []Prior
	preprocessor *Preprocessor
	cfg          PostProcessConfig
}

func NewPipeline(priors []Prior, cfg PostProcessConfig) *Pipeline {
	return &Pipeline{
		priors:       priors,
		preprocessor: NewPreprocessor(),
		cfg:          cfg,
	}
}

// Detect runs preprocess, inference and postprocess on an already decoded
// image using an engine the caller has exclusive use of. The context is
// checked between stages; a running inference call cannot be interrupted, so
// on deadline its result is discarded rather than abandoned mid-flight.
func (p *Pipeline) Detect(ctx context.Context, img image.Image, engine Engine, timings *models.ProcessingTimings) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(err)
	}

	bounds := img.Bounds()
	input := make([]float32, InputWidth*InputHeight*NumChannels)

	prepStart := time.Now()
	if err := p.preprocessor.Process(img, input); err != nil {
		return nil, err
	}
	timings.Preprocess = time.Since(prepStart)

	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(err)
	}

	inferStart := time.Now()
	scores, boxes, err := engine.Run(input)
	if err != nil {
		return nil, err
	}
	timings.Inference = time.Since(inferStart)

	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(err)
	}

	postStart := time.Now()
	result, err := PostProcess(scores, boxes, p.priors, bounds.Dx(), bounds.Dy(), p.cfg)
	if err != nil {
		return nil, err
	}
	timings.Postprocess = time.Since(postStart)

	return result, nil
}

func wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
