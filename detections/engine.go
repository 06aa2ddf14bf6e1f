package detections

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Engine is the synchronous inference contract: one input tensor in, the raw
// per-anchor class scores and box deltas out. An Engine serves one request at
// a time; concurrency comes from pooling engines, not from sharing one.
type Engine interface {
	Run(input []float32) (scores []float32, boxes []float32, err error)
	Destroy()
}

// ModelSession owns one loaded ONNX session together with its pre-allocated
// input and output tensors.
type ModelSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	scores  *ort.Tensor[float32]
	boxes   *ort.Tensor[float32]
}

// NewModelSession loads the model at modelPath with the given intra-op thread
// count. ort.InitializeEnvironment must have been called before this.
func NewModelSession(modelPath string, threads int) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer options.Destroy()

	if threads > 0 {
		options.SetIntraOpNumThreads(threads)
		options.SetInterOpNumThreads(threads)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumChannels, InputHeight, InputWidth))
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	scores, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumAnchors, 2))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("creating scores tensor: %w", err)
	}
	boxes, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumAnchors, 4))
	if err != nil {
		input.Destroy()
		scores.Destroy()
		return nil, fmt.Errorf("creating boxes tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"scores", "boxes"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{scores, boxes},
		options,
	)
	if err != nil {
		input.Destroy()
		scores.Destroy()
		boxes.Destroy()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &ModelSession{
		session: session,
		input:   input,
		scores:  scores,
		boxes:   boxes,
	}, nil
}

// Run copies input into the session tensor and executes the model. The
// returned slices alias the session's output tensors and are only valid until
// the next Run on this session.
func (m *ModelSession) Run(input []float32) ([]float32, []float32, error) {
	dst := m.input.GetData()
	if len(input) != len(dst) {
		return nil, nil, fmt.Errorf("%w: input holds %d values, want %d",
			ErrInference, len(input), len(dst))
	}
	copy(dst, input)

	if err := m.session.Run(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return m.scores.GetData(), m.boxes.GetData(), nil
}

func (m *ModelSession) Destroy() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.scores != nil {
		m.scores.Destroy()
	}
	if m.boxes != nil {
		m.boxes.Destroy()
	}
}
