package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Veraticus/digitpad/internal/common"
)

// Activation functions understood by the dense backend.
const (
	ActivationReLU   = "relu"
	ActivationLinear = "linear"
)

// DenseLayer is one fully connected layer. Weights are stored row-major as
// [outputs][inputs].
type DenseLayer struct {
	Activation string      `json:"activation"`
	Weights    [][]float32 `json:"weights"`
	Bias       []float32   `json:"bias"`
}

// DenseNetwork is the JSON weights file format.
type DenseNetwork struct {
	Layers []DenseLayer `json:"layers"`
}

// Validate checks that layer sizes chain together.
func (n *DenseNetwork) Validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}

	prev := -1
	for i, layer := range n.Layers {
		if len(layer.Weights) == 0 {
			return fmt.Errorf("layer %d has no weights", i)
		}
		if len(layer.Bias) != len(layer.Weights) {
			return fmt.Errorf("layer %d has %d outputs but %d biases", i, len(layer.Weights), len(layer.Bias))
		}
		width := len(layer.Weights[0])
		for j, row := range layer.Weights {
			if len(row) != width {
				return fmt.Errorf("layer %d row %d has %d weights, want %d", i, j, len(row), width)
			}
		}
		if prev >= 0 && width != prev {
			return fmt.Errorf("layer %d takes %d inputs but layer %d produces %d", i, width, i-1, prev)
		}
		switch layer.Activation {
		case ActivationReLU, ActivationLinear, "":
		default:
			return fmt.Errorf("layer %d has unknown activation %q", i, layer.Activation)
		}
		prev = len(layer.Weights)
	}
	return nil
}

// InputSize returns the width of the first layer.
func (n *DenseNetwork) InputSize() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}

// Forward evaluates the network on one input vector.
func (n *DenseNetwork) Forward(input []float32) []float32 {
	x := input
	for _, layer := range n.Layers {
		out := make([]float32, len(layer.Weights))
		for o, row := range layer.Weights {
			acc := layer.Bias[o]
			for i, w := range row {
				acc += w * x[i]
			}
			if layer.Activation == ActivationReLU && acc < 0 {
				acc = 0
			}
			out[o] = acc
		}
		x = out
	}
	return x
}

// Dense evaluates a small fully connected network in process.
type Dense struct {
	network *DenseNetwork
	mu      sync.RWMutex
}

// NewDense creates an unloaded dense backend.
func NewDense() *Dense {
	return &Dense{}
}

// NewDenseFromNetwork creates a loaded dense backend.
func NewDenseFromNetwork(network *DenseNetwork) (*Dense, error) {
	if err := network.Validate(); err != nil {
		return nil, err
	}
	return &Dense{network: network}, nil
}

// Load reads a JSON weights file.
func (d *Dense) Load(_ context.Context, modelPath string) error {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return fmt.Errorf("failed to read weights: %w", err)
	}

	var network DenseNetwork
	if err := json.Unmarshal(data, &network); err != nil {
		return fmt.Errorf("failed to parse weights: %w", err)
	}
	if err := network.Validate(); err != nil {
		return fmt.Errorf("invalid weights file %s: %w", modelPath, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.network != nil {
		return common.ErrAlreadyLoaded
	}
	d.network = &network
	return nil
}

// Run evaluates one input. The batch dimension must be 1.
func (d *Dense) Run(ctx context.Context, input []float32, shape []int64) ([]float32, error) {
	if err := checkShape(input, shape); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.network == nil {
		return nil, common.ErrClassifierUnavailable
	}
	if want := d.network.InputSize(); len(input) != want {
		return nil, fmt.Errorf("%w: network takes %d inputs, got %d", common.ErrShapeMismatch, want, len(input))
	}
	return d.network.Forward(input), nil
}

// Close releases the weights.
func (d *Dense) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.network = nil
	return nil
}
