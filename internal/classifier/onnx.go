package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process wide.
var (
	ortInitMu sync.Mutex
	ortUsers  int
)

func acquireEnvironment(libraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}
	ortUsers++
	return nil
}

func releaseEnvironment() error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	ortUsers--
	if ortUsers > 0 || !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNX runs a model file through ONNX Runtime.
type ONNX struct {
	session     *ort.DynamicAdvancedSession
	logger      *slog.Logger
	libraryPath string
	inputName   string
	outputName  string
	outputSize  int64
	mu          sync.Mutex
}

// NewONNX creates an unloaded ONNX backend. libraryPath points at the
// onnxruntime shared library; empty uses the platform default name.
func NewONNX(libraryPath string, logger *slog.Logger) *ONNX {
	if logger == nil {
		logger = slog.Default()
	}
	return &ONNX{libraryPath: libraryPath, logger: logger}
}

// Load opens the model and creates a session for its first input and output.
func (o *ONNX) Load(_ context.Context, modelPath string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		return common.ErrAlreadyLoaded
	}
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("model file: %w", err)
	}

	if err := acquireEnvironment(o.libraryPath); err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		_ = releaseEnvironment()
		return fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		_ = releaseEnvironment()
		return fmt.Errorf("model %s declares no inputs or outputs", modelPath)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		_ = releaseEnvironment()
		return fmt.Errorf("failed to create session: %w", err)
	}

	o.session = session
	o.inputName = inputs[0].Name
	o.outputName = outputs[0].Name
	o.outputSize = lastDimension(outputs[0].Dimensions)

	o.logger.Debug("onnx model loaded",
		"path", modelPath,
		"input", o.inputName,
		"input_shape", inputs[0].Dimensions.String(),
		"output", o.outputName,
		"output_shape", outputs[0].Dimensions.String())
	return nil
}

// Run evaluates one input tensor and returns the flattened first output.
func (o *ONNX) Run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	if err := checkShape(input, shape); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil, common.ErrClassifierUnavailable
	}

	in, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(shape[0], o.outputSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer func() { _ = out.Destroy() }()

	if err := o.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}

	return append([]float32(nil), out.GetData()...), nil
}

// Close releases the session.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	if envErr := releaseEnvironment(); err == nil {
		err = envErr
	}
	return err
}

// lastDimension returns the class count from an output shape such as
// [-1, 10], falling back to the digit class count for dynamic outputs.
func lastDimension(dims ort.Shape) int64 {
	if len(dims) > 0 && dims[len(dims)-1] > 0 {
		return dims[len(dims)-1]
	}
	return model.NumClasses
}
