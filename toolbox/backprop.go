package toolbox

import (
	"fmt"
)

// Trace is the per-example scratch state recorded by FeedForwardAndRecord and
// consumed by BackPropagate.  It is never part of the saved model.
//
// After a recording pass over a network with L layers, Activations holds L
// matrices (the input followed by one per layer) and Preactivations holds L-1.
type Trace struct {
	Preactivations []*Matrix
	Activations    []*Matrix
}

// NewTrace returns an empty trace sized for net.
func NewTrace(net *Network) *Trace {
	return &Trace{
		Preactivations: make([]*Matrix, 0, len(net.Layers)-1),
		Activations:    make([]*Matrix, 0, len(net.Layers)),
	}
}

// Reset drops everything recorded so far.
func (t *Trace) Reset() {
	clear(t.Preactivations)
	clear(t.Activations)
	t.Preactivations = t.Preactivations[:0]
	t.Activations = t.Activations[:0]
}

// Gradients holds the gradient of the loss with respect to every weight and
// bias matrix, in layer order.
type Gradients struct {
	Weights []*Matrix
	Biases  []*Matrix
}

// ZeroGradients returns all-zero gradients shaped like net's parameters.
func ZeroGradients(net *Network) *Gradients {
	g := &Gradients{}
	for l := range net.Weights {
		g.Weights = append(g.Weights, Zeros(net.Weights[l].Rows, net.Weights[l].Cols))
		g.Biases = append(g.Biases, Zeros(net.Biases[l].Rows, net.Biases[l].Cols))
	}
	return g
}

// Add returns the layer-by-layer sum of g and o.
func (g *Gradients) Add(o *Gradients) (*Gradients, error) {
	if len(g.Weights) != len(o.Weights) || len(g.Biases) != len(o.Biases) {
		return nil, fmt.Errorf("%w: cannot add gradients for %d layers to gradients for %d layers", ErrShapeMismatch, len(g.Weights), len(o.Weights))
	}

	sum := &Gradients{}
	for l := range g.Weights {
		w, err := Add(g.Weights[l], o.Weights[l])
		if err != nil {
			return nil, fmt.Errorf("while summing layer %d weight gradients: %w", l, err)
		}
		b, err := Add(g.Biases[l], o.Biases[l])
		if err != nil {
			return nil, fmt.Errorf("while summing layer %d bias gradients: %w", l, err)
		}
		sum.Weights = append(sum.Weights, w)
		sum.Biases = append(sum.Biases, b)
	}
	return sum, nil
}

// FeedForwardAndRecord is FeedForward that also records the input, every
// pre-activation and every activation into trace.  The trace is reset first,
// so it only ever describes this one input.  A nil trace is rejected with
// ErrIncompleteTrace.
func (net *Network) FeedForwardAndRecord(trace *Trace, input []float32) ([]float32, error) {
	if trace == nil {
		return nil, fmt.Errorf("%w: nil trace", ErrIncompleteTrace)
	}

	net.mu.RLock()
	defer net.mu.RUnlock()

	trace.Reset()
	a, err := net.forward(input, trace)
	if err != nil {
		trace.Reset()
		return nil, err
	}
	return a.Flatten(), nil
}

// BackPropagate computes the gradients of the squared error between predicted
// and expected with respect to every weight and bias.  trace must hold the
// recording pass that produced predicted.
func (net *Network) BackPropagate(trace *Trace, predicted, expected []float32) (*Gradients, error) {
	if trace == nil {
		return nil, fmt.Errorf("%w: nil trace", ErrIncompleteTrace)
	}

	net.mu.RLock()
	defer net.mu.RUnlock()

	if len(expected) != net.outputSize() {
		return nil, fmt.Errorf("%w: got %d expected outputs, last layer has %d neurons", ErrInputArity, len(expected), net.outputSize())
	}
	if len(predicted) != net.outputSize() {
		return nil, fmt.Errorf("%w: got %d predicted outputs, last layer has %d neurons", ErrInputArity, len(predicted), net.outputSize())
	}
	if len(trace.Activations) != len(net.Layers) || len(trace.Preactivations) != len(net.Layers)-1 {
		return nil, fmt.Errorf("%w: have %d activations and %d pre-activations for %d layers", ErrIncompleteTrace, len(trace.Activations), len(trace.Preactivations), len(net.Layers))
	}

	mul := net.multiplier()
	last := len(net.Layers) - 2

	g := &Gradients{
		Weights: make([]*Matrix, len(net.Weights)),
		Biases:  make([]*Matrix, len(net.Biases)),
	}

	// Output layer: delta = 2(a - y) . act'(z)
	diff, err := Sub(ColumnVector(predicted), ColumnVector(expected))
	if err != nil {
		return nil, err
	}
	delta, err := Hadamard(Scale(diff, 2), Map(trace.Preactivations[last], net.Activation.Derivative))
	if err != nil {
		return nil, fmt.Errorf("while computing output error: %w", err)
	}

	for l := last; l >= 0; l-- {
		if l < last {
			// delta_l = (W_{l+1}^T delta_{l+1}) . act'(z_l)
			back, err := mul.Multiply(Transpose(net.Weights[l+1]), delta)
			if err != nil {
				return nil, fmt.Errorf("while propagating error to layer %d: %w", l, err)
			}
			delta, err = Hadamard(back, Map(trace.Preactivations[l], net.Activation.Derivative))
			if err != nil {
				return nil, fmt.Errorf("while propagating error to layer %d: %w", l, err)
			}
		}

		dw, err := mul.Multiply(delta, Transpose(trace.Activations[l]))
		if err != nil {
			return nil, fmt.Errorf("while computing layer %d weight gradient: %w", l, err)
		}
		g.Weights[l] = dw
		g.Biases[l] = delta
	}

	return g, nil
}

// UpdateNetwork takes one gradient descent step: every weight and bias moves
// by -LearningRate times its gradient.  Nil or misshapen gradients are
// rejected with ErrShapeMismatch and leave the network unchanged.
func (net *Network) UpdateNetwork(g *Gradients) error {
	net.mu.Lock()
	defer net.mu.Unlock()

	return net.step(g, net.LearningRate)
}

// step subtracts rate*g from the parameters.  Nothing is written unless every
// layer's update succeeds.  Callers hold net.mu for writing.
func (net *Network) step(g *Gradients, rate float32) error {
	if g == nil {
		return fmt.Errorf("%w: nil gradients", ErrShapeMismatch)
	}
	if len(g.Weights) != len(net.Weights) || len(g.Biases) != len(net.Biases) {
		return fmt.Errorf("%w: gradients for %d layers, network has %d", ErrShapeMismatch, len(g.Weights), len(net.Weights))
	}

	weights := make([]*Matrix, len(net.Weights))
	biases := make([]*Matrix, len(net.Biases))
	for l := range net.Weights {
		if g.Weights[l] == nil || g.Biases[l] == nil {
			return fmt.Errorf("%w: missing layer %d gradients", ErrShapeMismatch, l)
		}
		w, err := Sub(net.Weights[l], Scale(g.Weights[l], rate))
		if err != nil {
			return fmt.Errorf("while updating layer %d weights: %w", l, err)
		}
		b, err := Sub(net.Biases[l], Scale(g.Biases[l], rate))
		if err != nil {
			return fmt.Errorf("while updating layer %d biases: %w", l, err)
		}
		weights[l] = w
		biases[l] = b
	}

	net.Weights = weights
	net.Biases = biases
	return nil
}
