package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/chewxy/math32"
)

// Network is a densely-connected feedforward network trained with squared
// error loss.
//
// FeedForward, Test, Loss and Predict may be called concurrently with each
// other.  UpdateNetwork (and so training) excludes them while it writes the
// weights.  Callers that mutate Weights or Biases directly must provide their
// own synchronization.
type Network struct {
	Layers []int

	Weights []*Matrix // Weights[i] has shape (Layers[i+1], Layers[i])
	Biases  []*Matrix // Biases[i] has shape (Layers[i+1], 1)

	Activation   Activation
	LearningRate float32

	// Multiplier computes the matrix products.  Nil means
	// SequentialMultiplier.  It is not saved with the model.
	Multiplier Multiplier

	mu sync.RWMutex
}

// New builds a network with the given layer sizes, input layer first.  Weights
// and biases are drawn uniformly from [-1, 1) using r.
func New(layers []int, activation Activation, learningRate float32, r *rand.Rand) (*Network, error) {
	if err := checkTopology(layers); err != nil {
		return nil, err
	}

	net := &Network{
		Layers:       slices.Clone(layers),
		Activation:   activation,
		LearningRate: learningRate,
	}
	for i := 0; i < len(layers)-1; i++ {
		net.Weights = append(net.Weights, Random(layers[i+1], layers[i], r))
		net.Biases = append(net.Biases, Random(layers[i+1], 1, r))
	}
	return net, nil
}

func checkTopology(layers []int) error {
	if len(layers) < 2 {
		return fmt.Errorf("%w: need at least an input and an output layer, got %v", ErrInvalidTopology, layers)
	}
	for i, size := range layers {
		if size <= 0 {
			return fmt.Errorf("%w: layer %d has size %d", ErrInvalidTopology, i, size)
		}
	}
	return nil
}

func (net *Network) multiplier() Multiplier {
	if net.Multiplier == nil {
		return SequentialMultiplier{}
	}
	return net.Multiplier
}

func (net *Network) inputSize() int {
	return net.Layers[0]
}

func (net *Network) outputSize() int {
	return net.Layers[len(net.Layers)-1]
}

// Clone returns a deep copy of the network's permanent state.  It is the way
// to snapshot weights for inference while training continues on the original.
func (net *Network) Clone() *Network {
	net.mu.RLock()
	defer net.mu.RUnlock()

	out := &Network{
		Layers:       slices.Clone(net.Layers),
		Activation:   net.Activation,
		LearningRate: net.LearningRate,
		Multiplier:   net.Multiplier,
	}
	for i := range net.Weights {
		out.Weights = append(out.Weights, net.Weights[i].Clone())
		out.Biases = append(out.Biases, net.Biases[i].Clone())
	}
	return out
}

// FeedForward runs input through the network and returns the output layer's
// activations.
func (net *Network) FeedForward(input []float32) ([]float32, error) {
	net.mu.RLock()
	defer net.mu.RUnlock()

	a, err := net.forward(input, nil)
	if err != nil {
		return nil, err
	}
	return a.Flatten(), nil
}

// forward propagates input layer by layer.  If trace is non-nil the input,
// every pre-activation and every activation are appended to it.  Callers hold
// net.mu.
func (net *Network) forward(input []float32, trace *Trace) (*Matrix, error) {
	if len(input) != net.inputSize() {
		return nil, fmt.Errorf("%w: got %d inputs, first layer has %d neurons", ErrInputArity, len(input), net.inputSize())
	}

	mul := net.multiplier()

	a := ColumnVector(input)
	if trace != nil {
		trace.Activations = append(trace.Activations, a)
	}

	for l := range net.Weights {
		wa, err := mul.Multiply(net.Weights[l], a)
		if err != nil {
			return nil, fmt.Errorf("while applying layer %d weights: %w", l, err)
		}
		z, err := Add(wa, net.Biases[l])
		if err != nil {
			return nil, fmt.Errorf("while applying layer %d biases: %w", l, err)
		}
		a = Map(z, net.Activation.Forward)

		if trace != nil {
			trace.Preactivations = append(trace.Preactivations, z)
			trace.Activations = append(trace.Activations, a)
		}
	}

	return a, nil
}

// Predict returns the index of the largest output.
func (net *Network) Predict(input []float32) (int, error) {
	out, err := net.FeedForward(input)
	if err != nil {
		return 0, err
	}

	best := 0
	score := math32.Inf(-1)
	for i, v := range out {
		if v > score {
			best = i
			score = v
		}
	}
	return best, nil
}

// Test runs every input through the network, rounds each output to the
// nearest integer, and counts the examples whose rounded output equals the
// expected output exactly.
func (net *Network) Test(inputs, expected [][]float32) (int, error) {
	if len(inputs) != len(expected) {
		return 0, fmt.Errorf("%w: %d inputs but %d expected outputs", ErrInputArity, len(inputs), len(expected))
	}

	passes := 0
	for k := range inputs {
		if len(expected[k]) != net.outputSize() {
			return 0, fmt.Errorf("%w: expected output %d has %d entries, last layer has %d neurons", ErrInputArity, k, len(expected[k]), net.outputSize())
		}

		out, err := net.FeedForward(inputs[k])
		if err != nil {
			return 0, fmt.Errorf("while evaluating example %d: %w", k, err)
		}
		for i := range out {
			out[i] = math32.Round(out[i])
		}
		if slices.Equal(out, expected[k]) {
			passes++
		}
	}
	return passes, nil
}
