package backend

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

func init() {
	Register("onnx", func() Backend { return &onnxBackend{} })
}

// runtime environment is process-global in ONNX Runtime; initialize once
var (
	ortInitMu   sync.Mutex
	ortInitDone bool
)

func ensureRuntime(libraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ortInitDone {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	ortInitDone = true
	return nil
}

// onnxBackend runs models through ONNX Runtime via the shared library
type onnxBackend struct{}

func (b *onnxBackend) Name() string { return "onnx" }

func (b *onnxBackend) Available() bool { return true }

// Open loads the model and prepares a dynamic session. Output tensors are
// allocated per run so their rank can be inspected afterwards.
func (b *onnxBackend) Open(_ context.Context, spec Spec) (Session, error) {
	if _, err := os.Stat(spec.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model not found at %s - run 'modelfetch' first", spec.ModelPath)
	}

	if err := ensureRuntime(spec.LibraryPath); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(spec.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	threads := spec.IntraOpThreads
	if threads <= 0 {
		threads = 2
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	inputNames := make([]string, len(inputInfo))
	inputs := make([]TensorInfo, len(inputInfo))
	for i, info := range inputInfo {
		inputNames[i] = info.Name
		inputs[i] = TensorInfo{Name: info.Name, Shape: info.Dimensions}
	}
	outputNames := make([]string, len(outputInfo))
	outputs := make([]TensorInfo, len(outputInfo))
	for i, info := range outputInfo {
		outputNames[i] = info.Name
		outputs[i] = TensorInfo{Name: info.Name, Shape: info.Dimensions}
	}

	session, err := ort.NewDynamicAdvancedSession(spec.ModelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxSession{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
		inputs:      inputs,
		outputs:     outputs,
		maxSeqLen:   spec.MaxSeqLen,
	}, nil
}

type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	inputs      []TensorInfo
	outputs     []TensorInfo
	maxSeqLen   int
	mu          sync.Mutex
}

func (s *onnxSession) Inputs() []TensorInfo  { return s.inputs }
func (s *onnxSession) Outputs() []TensorInfo { return s.outputs }

// Run feeds the encoded sequence to the model and returns the selected logits.
// Only inputs the model actually declares are bound; token_type_ids is absent
// from some exports.
func (s *onnxSession) Run(ctx context.Context, input Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seqLen := len(input.IDs)
	if seqLen == 0 {
		return nil, fmt.Errorf("empty input sequence")
	}

	byName := map[string][]int64{
		"input_ids":      input.IDs,
		"attention_mask": input.AttentionMask,
		"token_type_ids": input.TokenTypeIDs,
	}

	inputTensors := make([]ort.Value, 0, len(s.inputNames))
	defer func() {
		for _, t := range inputTensors {
			_ = t.Destroy()
		}
	}()

	for _, name := range s.inputNames {
		data, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("model requires unsupported input %q", name)
		}
		tensor, err := ort.NewTensor(ort.NewShape(1, int64(seqLen)), data)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		inputTensors = append(inputTensors, tensor)
	}

	outputValues := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run(inputTensors, outputValues); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, v := range outputValues {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	raw := make([]namedTensor, 0, len(outputValues))
	for i, v := range outputValues {
		tensor, ok := v.(*ort.Tensor[float32])
		if !ok {
			continue
		}
		data := tensor.GetData()
		copied := make([]float32, len(data))
		copy(copied, data)
		raw = append(raw, namedTensor{
			Name:  s.outputNames[i],
			Shape: tensor.GetShape(),
			Data:  copied,
		})
	}

	return selectLogits(raw)
}

func (s *onnxSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		_ = s.session.Destroy()
		s.session = nil
	}
	return nil
}
