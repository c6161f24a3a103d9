package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrBackendUnavailable is returned when a backend is registered but cannot
// run on this build (missing native bridge or unsupported platform).
var ErrBackendUnavailable = errors.New("backend unavailable")

// TensorInfo describes a named model input or output
type TensorInfo struct {
	Name  string
	Shape []int64
}

// Spec carries everything a backend needs to open a model
type Spec struct {
	ModelPath      string
	LibraryPath    string // optional path to the runtime shared library
	IntraOpThreads int
	MaxSeqLen      int
}

// Input holds the encoded sequence fed to a token-classification model.
// All slices are padded to the session's max sequence length.
type Input struct {
	IDs           []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Output is the selected logits tensor, flattened row-major as
// (1, SeqLen, NumLabels)
type Output struct {
	Logits    []float32
	SeqLen    int
	NumLabels int
}

// At returns the logit for position pos and label class
func (o *Output) At(pos, class int) float32 {
	return o.Logits[pos*o.NumLabels+class]
}

// Session is an open model ready for inference
type Session interface {
	Run(ctx context.Context, input Input) (*Output, error)
	Inputs() []TensorInfo
	Outputs() []TensorInfo
	Close() error
}

// Backend creates inference sessions for one runtime
type Backend interface {
	Name() string
	Available() bool
	Open(ctx context.Context, spec Spec) (Session, error)
}

var factories = map[string]func() Backend{}

// Register adds a backend factory under name. Called from package init.
func Register(name string, factory func() Backend) {
	factories[name] = factory
}

// New returns the backend registered under name
func New(name string) (Backend, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names lists registered backend names, sorted
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// namedTensor is one raw float32 output of a model run
type namedTensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// selectLogits picks the classification output among a run's tensors.
// Preference order: any output whose name contains "logits" (case-insensitive),
// then the first rank-3 tensor, then a rank-2 tensor reshaped to (1, rows, cols).
func selectLogits(outputs []namedTensor) (*Output, error) {
	if len(outputs) == 0 {
		return nil, errors.New("model produced no float32 outputs")
	}

	for _, t := range outputs {
		if strings.Contains(strings.ToLower(t.Name), "logits") {
			return shapeLogits(t)
		}
	}
	for _, t := range outputs {
		if len(t.Shape) == 3 {
			return shapeLogits(t)
		}
	}
	for _, t := range outputs {
		if len(t.Shape) == 2 {
			return shapeLogits(t)
		}
	}
	return nil, fmt.Errorf("no output with rank 2 or 3 among %d outputs", len(outputs))
}

// shapeLogits normalizes a tensor to (1, seq, labels). Rank-2 tensors get a
// batch dimension of 1 prefixed; some export configurations drop it.
func shapeLogits(t namedTensor) (*Output, error) {
	shape := t.Shape
	if len(shape) == 2 {
		shape = []int64{1, shape[0], shape[1]}
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("output %q has unusable rank %d", t.Name, len(t.Shape))
	}
	if shape[0] != 1 {
		return nil, fmt.Errorf("output %q has batch size %d, expected 1", t.Name, shape[0])
	}
	seqLen := int(shape[1])
	numLabels := int(shape[2])
	if seqLen*numLabels != len(t.Data) {
		return nil, fmt.Errorf("output %q shape %v does not match %d values", t.Name, t.Shape, len(t.Data))
	}
	return &Output{Logits: t.Data, SeqLen: seqLen, NumLabels: numLabels}, nil
}
